package bison

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/randalmurphal/emailbison/config"
	bisonhttp "github.com/randalmurphal/emailbison/http"
)

// Executor issues a single API call. *bisonhttp.Client implements it.
type Executor interface {
	Do(ctx context.Context, req bisonhttp.Request) (*bisonhttp.Response, error)
}

// Paths holds the endpoint prefixes from settings.
type Paths struct {
	Campaigns    string
	CampaignsV11 string
	SenderEmails string
}

// PathsFrom extracts endpoint prefixes from resolved settings.
func PathsFrom(s config.Settings) Paths {
	return Paths{
		Campaigns:    s.CampaignsPath,
		CampaignsV11: s.CampaignsV11Path,
		SenderEmails: s.SenderEmailsPath,
	}
}

// API is a thin typed layer over the EmailBison endpoints.
type API struct {
	exec  Executor
	paths Paths
}

// New creates an API using exec for transport.
func New(exec Executor, paths Paths) *API {
	if paths.Campaigns == "" {
		paths.Campaigns = config.DefaultCampaignsPath
	}
	if paths.CampaignsV11 == "" {
		paths.CampaignsV11 = config.DefaultCampaignsV11Path
	}
	if paths.SenderEmails == "" {
		paths.SenderEmails = config.DefaultSenderEmailsPath
	}
	return &API{exec: exec, paths: paths}
}

func (a *API) campaign(id int, suffix string) string {
	return fmt.Sprintf("%s/%d%s", a.paths.Campaigns, id, suffix)
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, body any) (*bisonhttp.Response, error) {
	return a.exec.Do(ctx, bisonhttp.Request{Method: method, Path: path, Query: query, Body: body})
}

// CampaignFilter narrows ListCampaigns.
type CampaignFilter struct {
	Search string
	Status string
	TagIDs []int
}

// ListCampaigns returns one page of campaigns. Page 0 omits the page
// parameter. EmailBison accepts the filter as a JSON body on GET.
func (a *API) ListCampaigns(ctx context.Context, f CampaignFilter, page int) (*bisonhttp.Response, error) {
	body := map[string]any{}
	if f.Search != "" {
		body["search"] = f.Search
	}
	if f.Status != "" {
		body["status"] = f.Status
	}
	if len(f.TagIDs) > 0 {
		body["tag_ids"] = f.TagIDs
	}

	var query url.Values
	if page > 0 {
		query = url.Values{"page": {strconv.Itoa(page)}}
	}
	if len(body) == 0 {
		return a.do(ctx, http.MethodGet, a.paths.Campaigns, query, nil)
	}
	return a.do(ctx, http.MethodGet, a.paths.Campaigns, query, body)
}

// ListAllCampaigns walks every page of ListCampaigns.
func (a *API) ListAllCampaigns(ctx context.Context, f CampaignFilter) ([]map[string]any, error) {
	iter := bisonhttp.NewPageIterator(func(ctx context.Context, page int) ([]map[string]any, bisonhttp.PageMeta, error) {
		resp, err := a.ListCampaigns(ctx, f, page)
		if err != nil {
			return nil, bisonhttp.PageMeta{}, err
		}
		items, meta := bisonhttp.ParsePage(resp)
		return items, meta, nil
	})
	return iter.All(ctx)
}

// CreateCampaignRaw creates an empty campaign without the workflow.
func (a *API) CreateCampaignRaw(ctx context.Context, name, campaignType string) (*bisonhttp.Response, error) {
	if campaignType == "" {
		campaignType = TypeOutbound
	}
	return a.do(ctx, http.MethodPost, a.paths.Campaigns, nil, map[string]any{"name": name, "type": campaignType})
}

// CampaignDetails fetches one campaign.
func (a *API) CampaignDetails(ctx context.Context, id int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodGet, a.campaign(id, ""), nil, nil)
}

// UpdateCampaignSettings patches campaign settings.
func (a *API) UpdateCampaignSettings(ctx context.Context, id int, s CampaignSettings) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPatch, a.campaign(id, "/update"), nil, s)
}

// CreateSchedule sets the sending schedule.
func (a *API) CreateSchedule(ctx context.Context, id int, s Schedule) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPost, a.campaign(id, "/schedule"), nil, s.Payload())
}

// PauseCampaign pauses sending.
func (a *API) PauseCampaign(ctx context.Context, id int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPatch, a.campaign(id, "/pause"), nil, nil)
}

// ResumeCampaign starts or resumes sending.
func (a *API) ResumeCampaign(ctx context.Context, id int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPatch, a.campaign(id, "/resume"), nil, nil)
}

// ArchiveCampaign archives a campaign.
func (a *API) ArchiveCampaign(ctx context.Context, id int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPatch, a.campaign(id, "/archive"), nil, nil)
}

// GetSequenceSteps fetches the v1.1 sequence of a campaign.
func (a *API) GetSequenceSteps(ctx context.Context, id int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d/sequence-steps", a.paths.CampaignsV11, id), nil, nil)
}

// CreateSequenceSteps creates a sequence from scratch.
func (a *API) CreateSequenceSteps(ctx context.Context, id int, seq Sequence) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPost, fmt.Sprintf("%s/%d/sequence-steps", a.paths.CampaignsV11, id), nil, seq)
}

// UpdateSequenceSteps replaces the steps of an existing sequence.
func (a *API) UpdateSequenceSteps(ctx context.Context, sequenceID int, seq Sequence) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPut, fmt.Sprintf("%s/sequence-steps/%d", a.paths.CampaignsV11, sequenceID), nil, seq)
}

// DeleteSequenceStep removes one step.
func (a *API) DeleteSequenceStep(ctx context.Context, stepID int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("%s/sequence-steps/%d", a.paths.Campaigns, stepID), nil, nil)
}

// SendTestEmail sends step stepID to email.
func (a *API) SendTestEmail(ctx context.Context, stepID int, email string) (*bisonhttp.Response, error) {
	path := fmt.Sprintf("%s/sequence-steps/%d/test-email", a.paths.Campaigns, stepID)
	return a.do(ctx, http.MethodPost, path, nil, map[string]any{"email": email})
}

// AttachLeadList imports an existing lead list.
func (a *API) AttachLeadList(ctx context.Context, id, leadListID int, allowParallel bool) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPost, a.campaign(id, "/leads/attach-lead-list"), nil, map[string]any{
		"lead_list_id":           leadListID,
		"allow_parallel_sending": allowParallel,
	})
}

// AttachLeads imports leads by id.
func (a *API) AttachLeads(ctx context.Context, id int, leadIDs []int, allowParallel bool) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPost, a.campaign(id, "/leads/attach-leads"), nil, map[string]any{
		"lead_ids":               leadIDs,
		"allow_parallel_sending": allowParallel,
	})
}

// StopFutureEmails stops sending to the given leads.
func (a *API) StopFutureEmails(ctx context.Context, id int, leadIDs []int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPost, a.campaign(id, "/leads/stop-future-emails"), nil, map[string]any{"lead_ids": leadIDs})
}

// CampaignSenderEmails lists accounts attached to a campaign.
func (a *API) CampaignSenderEmails(ctx context.Context, id int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodGet, a.campaign(id, "/sender-emails"), nil, nil)
}

// AttachSenderEmails attaches sender accounts. The API expects string ids.
func (a *API) AttachSenderEmails(ctx context.Context, id int, senderIDs []int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPost, a.campaign(id, "/attach-sender-emails"), nil, senderIDsBody(senderIDs))
}

// RemoveSenderEmails detaches sender accounts.
func (a *API) RemoveSenderEmails(ctx context.Context, id int, senderIDs []int) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodDelete, a.campaign(id, "/remove-sender-emails"), nil, senderIDsBody(senderIDs))
}

func senderIDsBody(ids []int) map[string]any {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	return map[string]any{"sender_email_ids": strs}
}

// CampaignStats fetches stats between two YYYY-MM-DD dates.
func (a *API) CampaignStats(ctx context.Context, id int, startDate, endDate string) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodPost, a.campaign(id, "/stats"), nil, map[string]any{
		"start_date": startDate,
		"end_date":   endDate,
	})
}

// ReplyFilter narrows CampaignReplies.
type ReplyFilter struct {
	Search        string
	Status        string
	Folder        string
	Read          *bool
	SenderEmailID int
	LeadID        int
	TagIDs        []int
}

func (f ReplyFilter) query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Folder != "" {
		q.Set("folder", f.Folder)
	}
	if f.Read != nil {
		q.Set("read", strconv.FormatBool(*f.Read))
	}
	if f.SenderEmailID > 0 {
		q.Set("sender_email_id", strconv.Itoa(f.SenderEmailID))
	}
	if f.LeadID > 0 {
		q.Set("lead_id", strconv.Itoa(f.LeadID))
	}
	addInts(q, "tag_ids", f.TagIDs)
	return q
}

// CampaignReplies lists replies received by a campaign.
func (a *API) CampaignReplies(ctx context.Context, id int, f ReplyFilter) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodGet, a.campaign(id, "/replies"), f.query(), nil)
}

// SenderFilter narrows ListSenderEmails.
type SenderFilter struct {
	Search         string `json:"search,omitempty" yaml:"search,omitempty"`
	TagIDs         []int  `json:"tag_ids,omitempty" yaml:"tag_ids,omitempty" validate:"omitempty,dive,gt=0"`
	ExcludedTagIDs []int  `json:"excluded_tag_ids,omitempty" yaml:"excluded_tag_ids,omitempty" validate:"omitempty,dive,gt=0"`
	WithoutTags    *bool  `json:"without_tags,omitempty" yaml:"without_tags,omitempty"`
}

func (f SenderFilter) query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	addInts(q, "tag_ids", f.TagIDs)
	addInts(q, "excluded_tag_ids", f.ExcludedTagIDs)
	if f.WithoutTags != nil {
		q.Set("without_tags", strconv.FormatBool(*f.WithoutTags))
	}
	return q
}

// ListSenderEmails lists sender accounts in the workspace.
func (a *API) ListSenderEmails(ctx context.Context, f SenderFilter) (*bisonhttp.Response, error) {
	return a.do(ctx, http.MethodGet, a.paths.SenderEmails, f.query(), nil)
}

func addInts(q url.Values, key string, ids []int) {
	for _, id := range ids {
		q.Add(key, strconv.Itoa(id))
	}
}
