package callstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"
)

// HTTPClient talks to the call store's REST API. Server-side requests
// authenticate with the API key plus a short-lived JWT signed with the API
// secret.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	apiSecret  []byte
	httpClient *http.Client
	maxRetries uint64
	backoff    time.Duration
	now        func() time.Time
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(cl *HTTPClient) { cl.httpClient = c }
}

// WithMaxRetries sets how many times transient read failures are retried.
func WithMaxRetries(n uint64) HTTPOption {
	return func(cl *HTTPClient) { cl.maxRetries = n }
}

// WithBackoff sets the base backoff between retries.
func WithBackoff(d time.Duration) HTTPOption {
	return func(cl *HTTPClient) { cl.backoff = d }
}

// WithClock overrides the time source (token issuance in tests).
func WithClock(now func() time.Time) HTTPOption {
	return func(cl *HTTPClient) { cl.now = now }
}

// NewHTTPClient creates a call store client for the given API endpoint.
func NewHTTPClient(baseURL, apiKey, apiSecret string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  []byte(apiSecret),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 3,
		backoff:    250 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// serverToken mints the short-lived JWT the store expects on server-side
// requests.
func (c *HTTPClient) serverToken() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    "server",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.apiSecret)
	if err != nil {
		return "", fmt.Errorf("sign server token: %w", err)
	}
	return signed, nil
}

type queryCallsRequest struct {
	FilterConditions Expr   `json:"filter_conditions"`
	Sort             []Sort `json:"sort,omitempty"`
	Limit            int    `json:"limit,omitempty"`
}

type queryCallsResponse struct {
	Calls []Call `json:"calls"`
}

// QueryCalls runs a filtered query against the store. Transient failures are
// retried with fibonacci backoff; the query is a pure read, so repeating it
// is safe.
func (c *HTTPClient) QueryCalls(ctx context.Context, q Query) ([]Call, error) {
	body := queryCallsRequest{FilterConditions: q.Filter, Sort: q.Sort, Limit: q.Limit}

	var out queryCallsResponse
	err := c.doWithRetry(ctx, "query calls", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/video/calls/query", body, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Calls, nil
}

type getOrCreateRequest struct {
	Data CallData `json:"data"`
}

type getOrCreateResponse struct {
	Call    Call `json:"call"`
	Created bool `json:"created"`
}

// GetOrCreate issues the store's atomic create-if-absent call. It is sent
// exactly once per attempt: the store decides whether the record is new, and
// a retry here could not change that answer but would hide a genuine
// transport failure from the caller.
func (c *HTTPClient) GetOrCreate(ctx context.Context, id string, data CallData) (Call, bool, error) {
	var out getOrCreateResponse
	path := "/video/call/default/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPost, path, getOrCreateRequest{Data: data}, &out); err != nil {
		return Call{}, false, err
	}
	return out.Call, out.Created, nil
}

type queryRecordingsResponse struct {
	Recordings []Recording `json:"recordings"`
}

// QueryRecordings lists the recordings of a single call.
func (c *HTTPClient) QueryRecordings(ctx context.Context, callID string) ([]Recording, error) {
	var out queryRecordingsResponse
	path := "/video/call/default/" + url.PathEscape(callID) + "/recordings"
	err := c.doWithRetry(ctx, "query recordings", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, path, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Recordings, nil
}

// doWithRetry retries fn on transient errors only. Terminal rejections pass
// through on the first attempt.
func (c *HTTPClient) doWithRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	token, err := c.serverToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Key", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransientError{Op: method + " " + path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("call store %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
