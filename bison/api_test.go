package bison

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bisonhttp "github.com/randalmurphal/emailbison/http"
	"github.com/randalmurphal/emailbison/testutil"
)

func newTestAPI(t *testing.T) (*API, *testutil.FakeBison) {
	t.Helper()

	fake := testutil.NewFakeBison(t)
	settings := fake.Settings()
	client := bisonhttp.NewClient(&settings)
	return New(client, PathsFrom(settings)), fake
}

func TestNew_DefaultPaths(t *testing.T) {
	api := New(nil, Paths{})

	assert.Equal(t, "/api/campaigns", api.paths.Campaigns)
	assert.Equal(t, "/api/campaigns/v1.1", api.paths.CampaignsV11)
	assert.Equal(t, "/api/sender-emails", api.paths.SenderEmails)
}

func TestAPI_Endpoints(t *testing.T) {
	api, fake := newTestAPI(t)
	fake.Fallback(http.StatusOK, map[string]any{"data": map[string]any{}})
	ctx := testutil.TestContext(t)

	tests := []struct {
		name       string
		call       func(ctx context.Context) (*bisonhttp.Response, error)
		wantMethod string
		wantPath   string
		wantBody   map[string]any
	}{
		{
			name:       "create",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.CreateCampaignRaw(ctx, "Q3", "") },
			wantMethod: http.MethodPost,
			wantPath:   "/api/campaigns",
			wantBody:   map[string]any{"name": "Q3", "type": "outbound"},
		},
		{
			name:       "details",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.CampaignDetails(ctx, 42) },
			wantMethod: http.MethodGet,
			wantPath:   "/api/campaigns/42",
		},
		{
			name:       "pause",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.PauseCampaign(ctx, 42) },
			wantMethod: http.MethodPatch,
			wantPath:   "/api/campaigns/42/pause",
		},
		{
			name:       "resume",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.ResumeCampaign(ctx, 42) },
			wantMethod: http.MethodPatch,
			wantPath:   "/api/campaigns/42/resume",
		},
		{
			name:       "archive",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.ArchiveCampaign(ctx, 42) },
			wantMethod: http.MethodPatch,
			wantPath:   "/api/campaigns/42/archive",
		},
		{
			name: "update settings",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				perDay := 100
				return api.UpdateCampaignSettings(ctx, 42, CampaignSettings{MaxEmailsPerDay: &perDay})
			},
			wantMethod: http.MethodPatch,
			wantPath:   "/api/campaigns/42/update",
			wantBody:   map[string]any{"max_emails_per_day": float64(100)},
		},
		{
			name:       "sequence get",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.GetSequenceSteps(ctx, 42) },
			wantMethod: http.MethodGet,
			wantPath:   "/api/campaigns/v1.1/42/sequence-steps",
		},
		{
			name: "sequence update",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.UpdateSequenceSteps(ctx, 9, Sequence{Title: "t"})
			},
			wantMethod: http.MethodPut,
			wantPath:   "/api/campaigns/v1.1/sequence-steps/9",
		},
		{
			name:       "delete step",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.DeleteSequenceStep(ctx, 5) },
			wantMethod: http.MethodDelete,
			wantPath:   "/api/campaigns/sequence-steps/5",
		},
		{
			name: "test email",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.SendTestEmail(ctx, 5, "me@x.test")
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/campaigns/sequence-steps/5/test-email",
			wantBody:   map[string]any{"email": "me@x.test"},
		},
		{
			name: "attach lead list",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.AttachLeadList(ctx, 42, 3, true)
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/campaigns/42/leads/attach-lead-list",
			wantBody:   map[string]any{"lead_list_id": float64(3), "allow_parallel_sending": true},
		},
		{
			name: "attach leads",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.AttachLeads(ctx, 42, []int{1, 2}, false)
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/campaigns/42/leads/attach-leads",
			wantBody:   map[string]any{"lead_ids": []any{float64(1), float64(2)}, "allow_parallel_sending": false},
		},
		{
			name: "stop future emails",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.StopFutureEmails(ctx, 42, []int{8})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/campaigns/42/leads/stop-future-emails",
			wantBody:   map[string]any{"lead_ids": []any{float64(8)}},
		},
		{
			name:       "campaign sender emails",
			call:       func(ctx context.Context) (*bisonhttp.Response, error) { return api.CampaignSenderEmails(ctx, 42) },
			wantMethod: http.MethodGet,
			wantPath:   "/api/campaigns/42/sender-emails",
		},
		{
			name: "attach sender emails uses string ids",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.AttachSenderEmails(ctx, 42, []int{11, 12})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/campaigns/42/attach-sender-emails",
			wantBody:   map[string]any{"sender_email_ids": []any{"11", "12"}},
		},
		{
			name: "remove sender emails",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.RemoveSenderEmails(ctx, 42, []int{11})
			},
			wantMethod: http.MethodDelete,
			wantPath:   "/api/campaigns/42/remove-sender-emails",
			wantBody:   map[string]any{"sender_email_ids": []any{"11"}},
		},
		{
			name: "stats",
			call: func(ctx context.Context) (*bisonhttp.Response, error) {
				return api.CampaignStats(ctx, 42, "2024-01-01", "2024-01-31")
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/campaigns/42/stats",
			wantBody:   map[string]any{"start_date": "2024-01-01", "end_date": "2024-01-31"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call(ctx)
			require.NoError(t, err)

			last, ok := fake.Last(tt.wantMethod, tt.wantPath)
			require.True(t, ok, "no %s %s recorded; calls: %v", tt.wantMethod, tt.wantPath, fake.Calls())
			if tt.wantBody != nil {
				assert.Equal(t, tt.wantBody, last.JSONBody())
			}
		})
	}
}

func TestSchedulePayload_WeekdayDefaults(t *testing.T) {
	api, fake := newTestAPI(t)
	fake.Fallback(http.StatusOK, map[string]any{})

	sat := true
	_, err := api.CreateSchedule(testutil.TestContext(t), 42, Schedule{
		Saturday:  &sat,
		StartTime: "09:00",
		EndTime:   "17:00",
		Timezone:  "America/New_York",
	})
	require.NoError(t, err)

	last, ok := fake.Last(http.MethodPost, "/api/campaigns/42/schedule")
	require.True(t, ok)
	body := last.JSONBody()
	assert.Equal(t, true, body["monday"])
	assert.Equal(t, true, body["friday"])
	assert.Equal(t, true, body["saturday"])
	assert.Equal(t, false, body["sunday"])
	assert.Equal(t, "09:00", body["start_time"])
	assert.Equal(t, "America/New_York", body["timezone"])
}

func TestListCampaigns_Filter(t *testing.T) {
	api, fake := newTestAPI(t)
	fake.Fallback(http.StatusOK, map[string]any{"data": []any{}})
	ctx := testutil.TestContext(t)

	_, err := api.ListCampaigns(ctx, CampaignFilter{}, 0)
	require.NoError(t, err)
	first := fake.Requests()[0]
	assert.Empty(t, first.Query)
	assert.Nil(t, first.Body)

	_, err = api.ListCampaigns(ctx, CampaignFilter{Search: "q3", Status: "active", TagIDs: []int{4}}, 2)
	require.NoError(t, err)
	second := fake.Requests()[1]
	assert.Equal(t, "page=2", second.Query)
	assert.Equal(t, map[string]any{"search": "q3", "status": "active", "tag_ids": []any{float64(4)}}, second.JSONBody())
}

func TestListAllCampaigns(t *testing.T) {
	api, fake := newTestAPI(t)
	fake.HandleFunc(http.MethodGet, "/api/campaigns", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		items := map[string][]any{
			"1": {map[string]any{"id": 1}, map[string]any{"id": 2}},
			"2": {map[string]any{"id": 3}},
		}[page]
		current := map[string]int{"1": 1, "2": 2}[page]
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"data": items,
			"meta": map[string]any{"current_page": current, "last_page": 2, "total": 3},
		})
	})

	all, err := api.ListAllCampaigns(testutil.TestContext(t), CampaignFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, float64(3), all[2]["id"])
	assert.Equal(t, 2, fake.Count(http.MethodGet, "/api/campaigns"))
}

func TestQueryFilters(t *testing.T) {
	api, fake := newTestAPI(t)
	fake.Fallback(http.StatusOK, map[string]any{"data": []any{}})
	ctx := testutil.TestContext(t)

	read := false
	_, err := api.CampaignReplies(ctx, 42, ReplyFilter{Status: "interested", Read: &read, TagIDs: []int{1, 2}})
	require.NoError(t, err)
	replies, ok := fake.Last(http.MethodGet, "/api/campaigns/42/replies")
	require.True(t, ok)
	assert.Equal(t, "read=false&status=interested&tag_ids=1&tag_ids=2", replies.Query)

	without := true
	_, err = api.ListSenderEmails(ctx, SenderFilter{Search: "acme", ExcludedTagIDs: []int{9}, WithoutTags: &without})
	require.NoError(t, err)
	senders, ok := fake.Last(http.MethodGet, "/api/sender-emails")
	require.True(t, ok)
	assert.Equal(t, "excluded_tag_ids=9&search=acme&without_tags=true", senders.Query)
}

func TestAPI_PropagatesClassifiedErrors(t *testing.T) {
	api, fake := newTestAPI(t)
	fake.Handle(http.MethodGet, "/api/campaigns/1", http.StatusNotFound, map[string]any{"message": "Campaign not found"})

	_, err := api.CampaignDetails(testutil.TestContext(t), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Campaign not found")
}
