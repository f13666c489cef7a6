package igclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
	"golang.org/x/time/rate"

	"igharvest/internal/config"
	"igharvest/internal/logging"
	"igharvest/internal/metrics"
)

// Client defines the platform calls the harvester uses.
type Client interface {
	ListUserMedia(ctx context.Context, token, cursor string) (Page, error)
	ListTagMedia(ctx context.Context, token, tag, cursor string) (Page, error)
	ListComments(ctx context.Context, token, mediaID string) ([]Comment, error)
	ListReactions(ctx context.Context, token, mediaID string) ([]UserRef, error)
}

// Endpoint labels used in errors and retry metrics.
const (
	EndpointUserMedia = "user_media"
	EndpointTagMedia  = "tag_media"
	EndpointComments  = "comments"
	EndpointLikes     = "likes"
)

const maxBodyBytes = 8 << 20

// HTTPClient talks to the Instagram-style REST API with per-request access tokens.
type HTTPClient struct {
	baseURL     string
	appSecret   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPClient(cfg config.APIConfig) *HTTPClient {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &HTTPClient{
		baseURL:     cfg.BaseURL,
		appSecret:   cfg.AppSecret,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		limiter:     newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		maxAttempts: attempts,
		baseBackoff: cfg.BaseBackoff(),
	}
}

// ListUserMedia returns one page of the token owner's recent media, newest first.
func (c *HTTPClient) ListUserMedia(ctx context.Context, token, cursor string) (Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("max_id", cursor)
	}
	body, err := c.get(ctx, EndpointUserMedia, "/v1/users/self/media/recent", token, q)
	if err != nil {
		return Page{}, err
	}
	return decodePage(body, EndpointUserMedia, "next_max_id")
}

// ListTagMedia returns one page of recent media carrying tag.
func (c *HTTPClient) ListTagMedia(ctx context.Context, token, tag, cursor string) (Page, error) {
	if tag == "" {
		return Page{}, errors.New("igclient: empty tag")
	}
	q := url.Values{}
	if cursor != "" {
		q.Set("max_tag_id", cursor)
	}
	body, err := c.get(ctx, EndpointTagMedia, "/v1/tags/"+url.PathEscape(tag)+"/media/recent", token, q)
	if err != nil {
		return Page{}, err
	}
	return decodePage(body, EndpointTagMedia, "next_max_tag_id")
}

func (c *HTTPClient) ListComments(ctx context.Context, token, mediaID string) ([]Comment, error) {
	body, err := c.get(ctx, EndpointComments, "/v1/media/"+url.PathEscape(mediaID)+"/comments", token, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[Comment](body, EndpointComments)
}

// ListReactions returns the accounts that liked mediaID.
func (c *HTTPClient) ListReactions(ctx context.Context, token, mediaID string) ([]UserRef, error) {
	body, err := c.get(ctx, EndpointLikes, "/v1/media/"+url.PathEscape(mediaID)+"/likes", token, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[UserRef](body, EndpointLikes)
}

func decodePage(body []byte, endpoint, cursorKey string) (Page, error) {
	media, err := decodeData[Media](body, endpoint)
	if err != nil {
		return Page{}, err
	}
	p := Page{Media: media}
	p.NextCursor, _ = jsonparser.GetString(body, "pagination", cursorKey)
	return p, nil
}

// decodeData decodes the envelope's data array. A missing or null data key is an
// empty listing; a data value that is not an array is an error.
func decodeData[T any](body []byte, endpoint string) ([]T, error) {
	data, typ, _, err := jsonparser.Get(body, "data")
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return nil, nil
		}
		return nil, fmt.Errorf("igclient: decode %s: %w", endpoint, err)
	}
	switch typ {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Array:
	default:
		return nil, fmt.Errorf("igclient: decode %s: data is not an array", endpoint)
	}
	return decodeItems[T](data, endpoint)
}

// decodeItems unmarshals every element of a JSON array on its own. Elements
// that fail to decode are logged and skipped.
func decodeItems[T any](data []byte, endpoint string) ([]T, error) {
	var out []T
	index := 0
	_, err := jsonparser.ArrayEach(data, func(value []byte, vt jsonparser.ValueType, _ int, _ error) {
		defer func() { index++ }()
		var item T
		if vt != jsonparser.Object {
			skipItem(endpoint, index, fmt.Errorf("element is %v, want object", vt))
			return
		}
		if err := json.Unmarshal(value, &item); err != nil {
			skipItem(endpoint, index, err)
			return
		}
		out = append(out, item)
	})
	if err != nil {
		return nil, fmt.Errorf("igclient: decode %s: %w", endpoint, err)
	}
	return out, nil
}

func skipItem(endpoint string, index int, err error) {
	metrics.IncPayloadSkipped(endpoint)
	logging.Warn("payload_skipped", map[string]any{"endpoint": endpoint, "index": index, "error": err})
}

func (c *HTTPClient) get(ctx context.Context, endpoint, path, token string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("access_token", token)
	if c.appSecret != "" {
		q.Set("sig", signature(path, q, c.appSecret))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("igclient: read %s: %w", endpoint, err)
	}
	if err := checkEnvelope(endpoint, resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkEnvelope maps the HTTP status and meta block onto typed errors.
func checkEnvelope(endpoint string, resp *http.Response, body []byte) error {
	code, _ := jsonparser.GetInt(body, "meta", "code")
	errType, _ := jsonparser.GetString(body, "meta", "error_type")
	errMsg, _ := jsonparser.GetString(body, "meta", "error_message")
	if resp.StatusCode == http.StatusTooManyRequests || errType == errorTypeRateLimit {
		return &RateLimitError{Endpoint: endpoint, RetryAfter: retryAfter(resp.Header.Get("Retry-After")), Message: errMsg}
	}
	if resp.StatusCode >= 400 || code >= 400 {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Code: int(code), Type: errType, Message: errMsg}
	}
	return nil
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// doWithRetry retries 5xx responses and transport failures with exponential backoff and jitter.
// 429 is returned to the caller untouched; the harvester decides what to do with exhausted quota.
func (c *HTTPClient) doWithRetry(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
			if err := sleep(ctx, jitter(backoff)); err != nil {
				return nil, err
			}
			backoff *= 2
		}
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logging.Debug("api_transport_error", map[string]any{"endpoint": endpoint, "attempt": attempt, "error": err})
			continue
		}
		if resp.StatusCode >= 500 && resp.StatusCode <= 599 && attempt < c.maxAttempts {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			logging.Debug("api_server_error", map[string]any{"endpoint": endpoint, "attempt": attempt, "status": resp.StatusCode})
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("igclient: %s failed after %d attempts: %w", endpoint, c.maxAttempts, lastErr)
}

// jitter spreads d by +/-20%.
func jitter(d time.Duration) time.Duration {
	j := time.Duration(float64(d) * 0.2)
	if j <= 0 {
		return d
	}
	return d - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
