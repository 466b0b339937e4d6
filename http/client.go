package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"

	"github.com/randalmurphal/emailbison/config"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// Backoff bounds.
const (
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 8 * time.Second
)

// DefaultUserAgent is sent when no WithUserAgent option is given.
const DefaultUserAgent = "emailbison-cli"

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is the outcome of a successful call.
type Response struct {
	StatusCode int
	Data       map[string]any
	Raw        []byte

	Method    string
	URL       string
	RequestID string
	Attempts  int
	Duration  time.Duration
}

// Client executes EmailBison API calls with retries.
type Client struct {
	baseURL   string
	token     config.Secret
	userAgent string
	logger    *slog.Logger
	messenger bisonerrors.Messenger

	retryWaitMin time.Duration
	retryWaitMax time.Duration
	transport    http.RoundTripper

	client *retryablehttp.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryWait overrides the backoff bounds.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.retryWaitMin = minWait
		c.retryWaitMax = maxWait
	}
}

// WithTransport replaces the pooled base transport. The bearer token is
// still added on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMessenger customizes error messages.
func WithMessenger(m bisonerrors.Messenger) Option {
	return func(c *Client) {
		c.messenger = m
	}
}

// NewClient creates a client bound to settings.
func NewClient(settings *config.Settings, opts ...Option) *Client {
	c := &Client{
		baseURL:      settings.BaseURL,
		token:        settings.APIToken,
		userAgent:    DefaultUserAgent,
		logger:       slog.Default(),
		messenger:    bisonerrors.DefaultMessenger{},
		retryWaitMin: DefaultRetryWaitMin,
		retryWaitMax: DefaultRetryWaitMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = cleanhttp.DefaultPooledTransport()
	}

	auth := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: settings.APIToken.Reveal(),
			TokenType:   "Bearer",
		}),
		Base: bufferedTransport{base: c.transport},
	}
	httpClient := &http.Client{
		// Embedding hides oauth2's deprecated CancelRequest, which net/http
		// would call on every timeout and which logs through the std logger.
		Transport: struct{ http.RoundTripper }{auth},
		Timeout:   settings.Timeout(),
		// The bearer token must not follow a redirect to another host.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.Logger = debugLogger{c.logger}
	rc.RetryMax = settings.Retries
	rc.RetryWaitMin = c.retryWaitMin
	rc.RetryWaitMax = c.retryWaitMax
	rc.CheckRetry = checkRetry
	rc.Backoff = backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = c.logRequest
	rc.ResponseLogHook = c.logResponse
	c.client = rc

	return c
}

// Execute performs method on path with an optional JSON body.
func (c *Client) Execute(ctx context.Context, method, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: method, Path: path, Body: body})
}

// Get performs a GET with query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Patch performs a PATCH with an optional JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE with an optional JSON body.
func (c *Client) Delete(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Body: body})
}

// Do executes req, retrying transient failures, and classifies the result.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target := c.resolve(req.Path, req.Query)

	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, bisonerrors.Wrap(bisonerrors.KindUnexpected, err, "cannot encode request body")
		}
		payload = data
	}

	requestID, err := nanoid.New()
	if err != nil {
		return nil, bisonerrors.Wrap(bisonerrors.KindUnexpected, err, "cannot generate request id")
	}

	tr := &trace{requestID: requestID, start: time.Now()}
	ctx = withTrace(ctx, tr)

	var rawBody any
	if payload != nil {
		rawBody = payload
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, method, target, rawBody)
	if err != nil {
		return nil, bisonerrors.Validationf("base_url", "cannot build request for %s: %v", target, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	elapsed := time.Since(tr.start)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, c.transportFailure(err, tr, method, target, elapsed)
	}
	defer resp.Body.Close()

	out, err := c.finish(resp, tr, method, target)
	c.logger.Debug("emailbison call finished",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"attempts", tr.attempts,
		"duration", time.Since(tr.start),
		"request_id", requestIDOf(resp, requestID),
		"ok", err == nil,
	)
	return out, err
}

// resolve joins path to the base URL. Absolute http(s) paths pass through.
func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

func (c *Client) finish(resp *http.Response, tr *trace, method, target string) (*Response, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e := bisonerrors.WrapTransport(err, c.baseURL, bisonerrors.WithMessenger(c.messenger))
		e.Attempts = tr.attempts
		e.RequestID = tr.requestID
		return nil, e
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Raw:        raw,
		Method:     method,
		URL:        target,
		RequestID:  requestIDOf(resp, tr.requestID),
		Attempts:   tr.attempts,
		Duration:   time.Since(tr.start),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := statusError(resp, raw, c.messenger)
		e.Attempts = out.Attempts
		e.RequestID = out.RequestID
		return nil, e
	}

	data, err := decodeSuccess(raw)
	if err != nil {
		e := bisonerrors.NewMalformedResponse(resp.StatusCode, err, bisonerrors.WithMessenger(c.messenger))
		e.Attempts = out.Attempts
		e.RequestID = out.RequestID
		return nil, e
	}
	out.Data = data
	return out, nil
}

func (c *Client) transportFailure(err error, tr *trace, method, target string, elapsed time.Duration) error {
	c.logger.Debug("emailbison call failed",
		"method", method,
		"url", target,
		"attempts", tr.attempts,
		"duration", elapsed,
		"request_id", tr.requestID,
		"error", err,
	)

	var e *bisonerrors.Error
	if tr.sawResponse && !isCanceled(err) {
		// The server answered at least once; the outage is on its side.
		e = bisonerrors.NewAPIError(tr.lastStatus, err.Error(), nil, bisonerrors.WithMessenger(c.messenger))
		e.Err = err
	} else {
		e = bisonerrors.WrapTransport(err, c.baseURL, bisonerrors.WithMessenger(c.messenger))
	}
	e.Attempts = tr.attempts
	e.RequestID = tr.requestID
	return e
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) logRequest(_ retryablehttp.Logger, req *http.Request, retry int) {
	tr := traceFrom(req.Context())
	if tr != nil {
		tr.attempts = retry + 1
		tr.attemptStart = time.Now()
	}
	c.logger.Debug("emailbison request",
		"method", req.Method,
		"url", req.URL.String(),
		"attempt", retry+1,
		"request_id", req.Header.Get("X-Request-Id"),
		"authorization", "Bearer "+c.token.String(),
	)
}

func (c *Client) logResponse(_ retryablehttp.Logger, resp *http.Response) {
	var took time.Duration
	if resp.Request == nil {
		return
	}
	if tr := traceFrom(resp.Request.Context()); tr != nil {
		tr.sawResponse = true
		tr.lastStatus = resp.StatusCode
		took = time.Since(tr.attemptStart)
	}
	c.logger.Debug("emailbison response",
		"status", resp.StatusCode,
		"duration", took,
		"request_id", resp.Header.Get("X-Request-Id"),
	)
}

// checkRetry retries transport failures, 408, 429 and 5xx.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return IsRetryableStatus(resp.StatusCode), nil
}

// backoff doubles from minWait and caps at maxWait. Retry-After is only
// reported in the final error, never used for the delay.
func backoff(minWait, maxWait time.Duration, attempt int, _ *http.Response) time.Duration {
	return retryablehttp.DefaultBackoff(minWait, maxWait, attempt, nil)
}

// Backoff returns the wait before retry number attempt (zero based).
func Backoff(minWait, maxWait time.Duration, attempt int) time.Duration {
	return backoff(minWait, maxWait, attempt, nil)
}

func requestIDOf(resp *http.Response, fallback string) string {
	for _, h := range []string{"X-Request-Id", "X-Correlation-Id"} {
		if v := resp.Header.Get(h); v != "" {
			return v
		}
	}
	return fallback
}

type traceKey struct{}

// trace accumulates per-call state across retry attempts.
type trace struct {
	requestID    string
	start        time.Time
	attemptStart time.Time
	attempts     int
	sawResponse  bool
	lastStatus   int
}

func withTrace(ctx context.Context, tr *trace) context.Context {
	return context.WithValue(ctx, traceKey{}, tr)
}

func traceFrom(ctx context.Context) *trace {
	tr, _ := ctx.Value(traceKey{}).(*trace)
	return tr
}

// bufferedTransport reads the whole response body inside the round trip, so
// a body that stalls or breaks fails the attempt and reaches checkRetry.
type bufferedTransport struct {
	base http.RoundTripper
}

func (t bufferedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if tr := traceFrom(req.Context()); tr != nil {
		tr.sawResponse = true
		tr.lastStatus = resp.StatusCode
	}

	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	resp.ContentLength = int64(len(raw))
	return resp, nil
}

// debugLogger routes retryablehttp's leveled logs to slog at debug level.
type debugLogger struct {
	logger *slog.Logger
}

func (l debugLogger) Error(msg string, kv ...any) { l.logger.Debug("retryablehttp: "+msg, kv...) }
func (l debugLogger) Info(msg string, kv ...any)  { l.logger.Debug("retryablehttp: "+msg, kv...) }
func (l debugLogger) Debug(msg string, kv ...any) { l.logger.Debug("retryablehttp: "+msg, kv...) }
func (l debugLogger) Warn(msg string, kv ...any)  { l.logger.Debug("retryablehttp: "+msg, kv...) }

var _ retryablehttp.LeveledLogger = debugLogger{}

// String implements fmt.Stringer for debug output.
func (r *Response) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s -> %d", r.Method, r.URL, r.StatusCode)
	if r.RequestID != "" {
		fmt.Fprintf(&b, " [%s]", r.RequestID)
	}
	fmt.Fprintf(&b, " (%d attempt(s), %s)", r.Attempts, r.Duration.Round(time.Millisecond))
	return b.String()
}
