// Package http is the resilient EmailBison API client.
//
// Every call resolves a URL against the configured base, carries a bearer
// token, applies a per-attempt timeout and retries transient failures a
// bounded number of times before classifying the outcome into the
// errors package taxonomy.
//
// Retry policy:
//   - transport failures, 408, 429 and 5xx responses are retried
//   - other 4xx responses fail immediately
//   - at most settings.Retries extra attempts follow the first one
//   - waits double from RetryWaitMin up to RetryWaitMax with no jitter
//
// When retries run out, the error is an ApiError if the server answered at
// least once and a NetworkError otherwise.
//
// # Usage
//
//	client := bisonhttp.NewClient(&settings, bisonhttp.WithLogger(logger))
//	resp, err := client.Execute(ctx, "GET", settings.CampaignsPath, nil)
//	if err != nil {
//	    os.Exit(errors.ExitCode(err))
//	}
//	fmt.Println(resp.Data["data"])
//
// Retries apply to every method, including POST. A create that timed out
// after the server committed it may therefore be applied twice.
package http
