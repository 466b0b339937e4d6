package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/randalmurphal/emailbison/config"
)

// TestToken is the API token FakeBison settings carry.
const TestToken = "test-token-0001"

// Recorded is one request received by FakeBison.
type Recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	// Body is the decoded JSON body, nil when the request had none.
	Body any
	Raw  []byte
}

// JSONBody returns Body as an object.
func (r Recorded) JSONBody() map[string]any {
	obj, _ := r.Body.(map[string]any)
	return obj
}

// FakeBison is an httptest server that answers EmailBison routes with
// canned responses and records every request.
type FakeBison struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	fallback http.HandlerFunc
	requests []Recorded
}

// NewFakeBison starts a fake server that is closed when the test ends.
// Unrouted requests get a 404.
func NewFakeBison(t *testing.T) *FakeBison {
	t.Helper()

	f := &FakeBison{routes: make(map[string]http.HandlerFunc)}
	f.fallback = func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]any{"message": "no route"})
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)

	return f
}

// Handle answers method and path with a JSON body.
func (f *FakeBison) Handle(method, path string, status int, body any) {
	f.HandleFunc(method, path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// HandleFunc installs fn for method and path.
func (f *FakeBison) HandleFunc(method, path string, fn http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
}

// Fallback answers every unrouted request with a JSON body.
func (f *FakeBison) Fallback(status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	}
}

// Requests returns a copy of the recorded requests in arrival order.
func (f *FakeBison) Requests() []Recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Recorded(nil), f.requests...)
}

// Calls returns "METHOD path" for every recorded request.
func (f *FakeBison) Calls() []string {
	reqs := f.Requests()
	calls := make([]string, len(reqs))
	for i, r := range reqs {
		calls[i] = r.Method + " " + r.Path
	}
	return calls
}

// Count returns how many requests hit method and path.
func (f *FakeBison) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request for method and path.
func (f *FakeBison) Last(method, path string) (Recorded, bool) {
	reqs := f.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Recorded{}, false
}

// Settings returns resolved settings pointing at the server with retries
// disabled.
func (f *FakeBison) Settings() config.Settings {
	return config.Settings{
		BaseURL:          f.URL,
		APIToken:         config.Secret(TestToken),
		TimeoutSeconds:   5,
		Retries:          0,
		CampaignsPath:    config.DefaultCampaignsPath,
		CampaignsV11Path: config.DefaultCampaignsV11Path,
		SenderEmailsPath: config.DefaultSenderEmailsPath,
	}
}

func (f *FakeBison) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := Recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Raw:    raw,
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	fn, ok := f.routes[r.Method+" "+r.URL.Path]
	if !ok {
		fn = f.fallback
	}
	f.mu.Unlock()

	fn(w, r)
}

// WriteJSON writes body as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
