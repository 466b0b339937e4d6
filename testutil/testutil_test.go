package testutil

import (
	"bytes"
	"net/http"
	"os"
	"testing"
	"time"
)

func TestTempFile(t *testing.T) {
	path := TempFileString(t, "spec.json", `{"name":"x"}`)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	if string(data) != `{"name":"x"}` {
		t.Errorf("content = %q", data)
	}
}

func TestTestContext(t *testing.T) {
	ctx := TestContext(t)

	select {
	case <-ctx.Done():
		t.Error("context should not be done yet")
	default:
	}
}

func TestTestContextWithTimeout(t *testing.T) {
	ctx := TestContextWithTimeout(t, 10*time.Millisecond)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("context should have timed out")
	}
}

func TestFakeBison(t *testing.T) {
	f := NewFakeBison(t)
	f.Handle(http.MethodPost, "/api/campaigns", http.StatusCreated, map[string]any{"data": map[string]any{"id": 7}})

	resp, err := http.Post(f.URL+"/api/campaigns?x=1", "application/json", bytes.NewBufferString(`{"name":"Q3"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}

	resp, err = http.Get(f.URL + "/api/unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unrouted status = %d, want 404", resp.StatusCode)
	}

	if got := f.Count(http.MethodPost, "/api/campaigns"); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	last, ok := f.Last(http.MethodPost, "/api/campaigns")
	if !ok {
		t.Fatal("expected a recorded request")
	}
	if last.Query != "x=1" || last.JSONBody()["name"] != "Q3" {
		t.Errorf("recorded = %+v", last)
	}

	calls := f.Calls()
	if len(calls) != 2 || calls[1] != "GET /api/unknown" {
		t.Errorf("Calls() = %v", calls)
	}

	s := f.Settings()
	if s.BaseURL != f.URL || s.APIToken.Reveal() != TestToken {
		t.Errorf("Settings() = %+v", s)
	}
}
