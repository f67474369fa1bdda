package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rzbill/haywire/pkg/message"
)

// HTTPTransport implements QueuesTransport over the JSON gateway.
type HTTPTransport struct {
	baseURL func() string
	client  *http.Client
}

var _ QueuesTransport = (*HTTPTransport)(nil)

// NewHTTPTransport builds a transport; a nil client uses http.DefaultClient.
func NewHTTPTransport(baseURL func() string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: baseURL, client: client}
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("http error: %d %s", e.Status, e.Message)
}

func (t *HTTPTransport) Create(ctx context.Context, queue string) error {
	return t.do(ctx, http.MethodPost, "/v1/queues/create", nil, map[string]string{"queue": queue}, nil)
}

func (t *HTTPTransport) List(ctx context.Context) ([]string, error) {
	var out struct {
		Queues []string `json:"queues"`
	}
	if err := t.do(ctx, http.MethodGet, "/v1/queues", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Queues, nil
}

func (t *HTTPTransport) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	body := map[string]any{
		"queue":         req.Queue,
		"body":          req.Body,
		"headers":       req.Headers,
		"correlationId": req.CorrelationID,
	}
	var out SendResult
	err := t.do(ctx, http.MethodPost, "/v1/queues/send", nil, body, &out)
	return out, err
}

// Receive returns ErrNoMessage when the server answered 204.
func (t *HTTPTransport) Receive(ctx context.Context, queue string, timeout time.Duration) (*message.Message, error) {
	q := url.Values{"queue": {queue}, "timeoutMs": {strconv.FormatInt(timeout.Milliseconds(), 10)}}
	var m message.Message
	found := false
	if err := t.doFound(ctx, http.MethodGet, "/v1/queues/receive", q, nil, &m, &found); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoMessage
	}
	return &m, nil
}

func (t *HTTPTransport) Peek(ctx context.Context, queue string) (*message.Message, error) {
	var m message.Message
	found := false
	if err := t.doFound(ctx, http.MethodGet, "/v1/queues/peek", url.Values{"queue": {queue}}, nil, &m, &found); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoMessage
	}
	return &m, nil
}

func (t *HTTPTransport) Browse(ctx context.Context, req BrowseRequest) ([]*message.Message, error) {
	q := url.Values{"queue": {req.Queue}}
	if req.Filter != "" {
		q.Set("filter", req.Filter)
	}
	if req.FromSeq > 0 {
		q.Set("from", strconv.FormatUint(req.FromSeq, 10))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	var out struct {
		Messages []*message.Message `json:"messages"`
	}
	if err := t.do(ctx, http.MethodGet, "/v1/queues/browse", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Stats returns one entry for a named queue, or all queues for "".
func (t *HTTPTransport) Stats(ctx context.Context, queue string) ([]QueueStats, error) {
	if queue != "" {
		var st QueueStats
		if err := t.do(ctx, http.MethodGet, "/v1/queues/stats", url.Values{"queue": {queue}}, nil, &st); err != nil {
			return nil, err
		}
		return []QueueStats{st}, nil
	}
	var out struct {
		Queues []QueueStats `json:"queues"`
	}
	if err := t.do(ctx, http.MethodGet, "/v1/queues/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Queues, nil
}

func (t *HTTPTransport) Shutdown(ctx context.Context, queue string) error {
	return t.do(ctx, http.MethodPost, "/v1/queues/shutdown", nil, map[string]string{"queue": queue}, nil)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var found bool
	return t.doFound(ctx, method, path, query, in, out, &found)
}

// doFound sets *found to false on 204 No Content.
func (t *HTTPTransport) doFound(ctx context.Context, method, path string, query url.Values, in, out any, found *bool) error {
	target := strings.TrimRight(t.baseURL(), "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &HTTPError{Status: resp.StatusCode, Message: e.Error}
	}
	if resp.StatusCode == http.StatusNoContent {
		*found = false
		return nil
	}
	*found = true
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
