// Package fetch implements the bounded-concurrency HTTP fetcher used during
// the KNOWLEDGE phase: one goroutine per selected endpoint, gated by a
// semaphore and rate limiter, with SSRF validation, exponential-backoff
// retry, alternate-endpoint fallback, and response truncation.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dnnyngyen/phasecore/internal/ratelimit"
	"github.com/dnnyngyen/phasecore/internal/ssrf"
	"github.com/dnnyngyen/phasecore/internal/types"
)

// Options configures one batch of fetches.
type Options struct {
	MaxConcurrency   int
	Timeout          time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	MaxContentLength int64
	MaxTruncateChars int
	UserAgent        string
	RateLimitPerMin  int
	RateLimitWindow  time.Duration
}

// Fetcher performs one batch of endpoint fetches per KNOWLEDGE-phase call.
type Fetcher struct {
	client  *http.Client
	guard   *ssrf.Guard
	limiter *ratelimit.Limiter
	opts    Options
}

// New builds a Fetcher. client may be nil, in which case a default
// *http.Client is constructed with Options.Timeout as its overall deadline
// floor (the per-request context deadline still applies independently).
func New(client *http.Client, guard *ssrf.Guard, limiter *ratelimit.Limiter, opts Options) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{client: client, guard: guard, limiter: limiter, opts: opts}
}

// Target is one endpoint selected by internal/registry for fetching.
type Target struct {
	Endpoint types.APIEndpoint
	Query    string
}

// FetchAll fetches every target concurrently, bounded by Options.MaxConcurrency,
// and returns results preserving input order regardless of completion order.
func (f *Fetcher) FetchAll(ctx context.Context, targets []Target) ([]types.FetchResult, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	results := make([]types.FetchResult, len(targets))
	sem := semaphore.NewWeighted(int64(max(1, f.opts.MaxConcurrency)))
	g, gctx := errgroup.WithContext(ctx)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = types.FetchResult{Index: i, Success: false, Error: &types.FetchError{
					Type: types.FetchErrorUnknown, Message: err.Error(),
				}}
				return nil
			}
			defer sem.Release(1)

			results[i] = f.fetchOne(gctx, i, target)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// fetchOne tries the primary URL, then each alternate in EndpointPatterns in
// order, applying the retry policy to each before moving to the next.
func (f *Fetcher) fetchOne(ctx context.Context, index int, target Target) types.FetchResult {
	urls := append([]string{target.Endpoint.URL}, target.Endpoint.EndpointPatterns...)
	attempted := make([]string, 0, len(urls))

	var lastErr *types.FetchError
	for i, u := range urls {
		attempted = append(attempted, u)
		result, err := f.fetchWithRetry(ctx, u, target.Query)
		if err == nil {
			result.Index = index
			result.Endpoint = attempted
			result.Corrected = i > 0
			return result
		}
		lastErr = err
	}

	return types.FetchResult{
		Index:    index,
		Endpoint: attempted,
		Success:  false,
		Error:    lastErr,
	}
}

// fetchWithRetry makes up to 1+Options.MaxRetries attempts against a single
// URL with exponential backoff between them; a 4xx status is not retried.
func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL, query string) (types.FetchResult, *types.FetchError) {
	u, err := f.guard.Sanitize(withQuery(rawURL, query))
	if err != nil {
		return types.FetchResult{}, &types.FetchError{Type: types.FetchErrorSSRFBlocked, Message: err.Error()}
	}

	if f.limiter != nil && !f.limiter.CanMakeRequest(u.Hostname(), f.opts.RateLimitPerMin, f.opts.RateLimitWindow) {
		return types.FetchResult{}, &types.FetchError{Type: types.FetchErrorRateLimit, Message: "rate limit exceeded for " + u.Hostname()}
	}

	var lastErr *types.FetchError
	delay := f.opts.RetryBaseDelay
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return types.FetchResult{}, &types.FetchError{Type: types.FetchErrorTimeout, Message: ctx.Err().Error()}
			case <-time.After(delay):
			}
			delay *= 2
		}

		result, fetchErr := f.doRequest(ctx, u.String())
		if fetchErr == nil {
			return result, nil
		}
		lastErr = fetchErr
		if fetchErr.Type == types.FetchErrorHTTPStatus && fetchErr.StatusCode < 500 {
			break
		}
	}
	return types.FetchResult{}, lastErr
}

func withQuery(rawURL, query string) string {
	if query == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "q=" + query
}

func (f *Fetcher) doRequest(ctx context.Context, u string) (types.FetchResult, *types.FetchError) {
	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return types.FetchResult{}, &types.FetchError{Type: types.FetchErrorUnknown, Message: err.Error()}
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return types.FetchResult{}, &types.FetchError{Type: types.FetchErrorTimeout, Message: err.Error()}
		}
		return types.FetchResult{}, &types.FetchError{Type: types.FetchErrorNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxContentLength))
	duration := time.Since(start)
	if err != nil {
		return types.FetchResult{}, &types.FetchError{Type: types.FetchErrorNetwork, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return types.FetchResult{}, &types.FetchError{
			Type:       types.FetchErrorHTTPStatus,
			Message:    fmt.Sprintf("status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	headers := make(map[string]string, types.MaxHeaders)
	count := 0
	for k := range resp.Header {
		if count >= types.MaxHeaders {
			break
		}
		headers[k] = resp.Header.Get(k)
		count++
	}

	truncated := truncateBody(body, f.opts.MaxTruncateChars)

	return types.FetchResult{
		Success:  true,
		Status:   resp.StatusCode,
		Headers:  headers,
		Body:     truncated,
		Size:     len(body),
		Duration: duration,
	}, nil
}

// truncateBody applies suffix truncation to plain text, or recursive
// truncation preserving JSON validity when the body parses as JSON.
func truncateBody(body []byte, maxChars int) string {
	if maxChars <= 0 || len(body) <= maxChars {
		return string(body)
	}

	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		truncated := truncateJSON(v, maxChars)
		out, err := json.Marshal(truncated)
		if err == nil {
			return string(out)
		}
	}

	s := string(body)
	return s[:maxChars] + fmt.Sprintf("... [truncated %d bytes]", len(s)-maxChars)
}

// truncateJSON recursively bounds strings and arrays so the result stays
// valid JSON: an array longer than 20 elements keeps its first 20 plus a
// "_truncated: N more" string element. Objects keep every key; only their
// values are truncated.
func truncateJSON(v any, budget int) any {
	switch val := v.(type) {
	case string:
		if len(val) > budget {
			return val[:budget] + "..."
		}
		return val
	case []any:
		const maxItems = 20
		if len(val) <= maxItems {
			out := make([]any, len(val))
			for i, item := range val {
				out[i] = truncateJSON(item, budget)
			}
			return out
		}
		out := make([]any, 0, maxItems+1)
		for i := 0; i < maxItems; i++ {
			out = append(out, truncateJSON(val[i], budget))
		}
		out = append(out, fmt.Sprintf("_truncated: %d more", len(val)-maxItems))
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = truncateJSON(item, budget)
		}
		return out
	default:
		return val
	}
}
