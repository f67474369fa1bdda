package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/haywire/internal/inputqueue"
	"github.com/rzbill/haywire/internal/queue"
	"github.com/rzbill/haywire/internal/runtime"
	logpkg "github.com/rzbill/haywire/pkg/log"
	"github.com/rzbill/haywire/pkg/message"
)

const (
	// maxReceiveWait bounds a single HTTP receive, whatever the configured
	// default.
	maxReceiveWait = 5 * time.Minute
	// subscribePoll is how long one subscribe iteration waits before
	// rechecking the client connection.
	subscribePoll = time.Second
	maxFilterLen  = 2048
)

// QueuesController serves the queue data and admin API.
type QueuesController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

func NewQueuesController(rt *runtime.Runtime, logger logpkg.Logger) *QueuesController {
	return &QueuesController{rt: rt, logger: logger.WithComponent("http")}
}

// RegisterRoutes registers the queue endpoints.
func (c *QueuesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/queues", c.handleList)
	mux.HandleFunc("/v1/queues/create", c.handleCreate)
	mux.HandleFunc("/v1/queues/send", c.handleSend)
	mux.HandleFunc("/v1/queues/receive", c.handleReceive)
	mux.HandleFunc("/v1/queues/subscribe", c.handleSubscribeSSE)
	mux.HandleFunc("/v1/queues/peek", c.handlePeek)
	mux.HandleFunc("/v1/queues/browse", c.handleBrowse)
	mux.HandleFunc("/v1/queues/stats", c.handleStats)
	mux.HandleFunc("/v1/queues/shutdown", c.handleShutdown)
}

func (c *QueuesController) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"queues": c.rt.Queues()})
}

func (c *QueuesController) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := c.rt.CreateQueue(req.Queue); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, createReq{Queue: req.Queue})
}

// handleSend enqueues one message, creating the queue when auto-create is on.
func (c *QueuesController) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	start := time.Now()
	var req sendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	q, err := c.rt.QueueForSend(req.Queue)
	if err != nil {
		writeFailure(w, err)
		return
	}
	body := req.Body
	if body == nil && req.Text != "" {
		body = []byte(req.Text)
	}
	msg := message.New(body)
	msg.Headers = req.Headers
	msg.CorrelationID = req.CorrelationID
	if _, err := q.Enqueue(r.Context(), msg); err != nil {
		c.logger.Warn("send failed", logpkg.Str("queue", req.Queue), logpkg.Err(err))
		writeFailure(w, err)
		return
	}
	w.Header().Set("X-Send-Latency-Ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	writeJSONStatus(w, http.StatusAccepted, sendResp{ID: msg.ID, Sequence: msg.Sequence})
}

// handleReceive takes one message. 204 means the wait timed out, or the
// queue was closed with nothing left to deliver.
func (c *QueuesController) handleReceive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q, err := c.rt.Queue(r.URL.Query().Get("queue"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	timeout, ok := parseTimeout(r.URL.Query().Get("timeoutMs"), c.rt.Config().ReceiveTimeout())
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid timeoutMs")
		return
	}
	if timeout <= 0 || timeout > maxReceiveWait {
		timeout = maxReceiveWait
	}
	m, err := q.Dequeue(timeout)
	switch {
	case errors.Is(err, inputqueue.ErrTimeout):
		w.Header().Set("X-Receive-Result", "timeout")
		writeNoContent(w)
	case err != nil:
		writeFailure(w, err)
	case m == nil:
		w.Header().Set("X-Receive-Result", "empty")
		writeNoContent(w)
	default:
		writeJSON(w, m)
	}
}

// handleSubscribeSSE streams messages to the client until it disconnects
// or the queue has nothing more to deliver.
func (c *QueuesController) handleSubscribeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q, err := c.rt.Queue(r.URL.Query().Get("queue"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	sink := sseSink{w: w}
	sink.Flush()

	sent := 0
	for r.Context().Err() == nil {
		m, err := q.Dequeue(subscribePoll)
		if errors.Is(err, inputqueue.ErrTimeout) {
			continue
		}
		if err != nil {
			sink.Event("error", err.Error())
			return
		}
		if m == nil {
			sink.Event("end", "closed")
			return
		}
		if err := sink.Send(m); err != nil {
			c.logger.Warn("subscriber dropped a message",
				logpkg.Str("queue", q.ID()),
				logpkg.Uint64("sequence", m.Sequence),
				logpkg.Err(err))
			return
		}
		sent++
		if limit > 0 && sent >= limit {
			sink.Event("end", "limit")
			return
		}
	}
}

func (c *QueuesController) handlePeek(w http.ResponseWriter, r *http.Request) {
	q, err := c.rt.Queue(r.URL.Query().Get("queue"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	m, err := q.Peek()
	if err != nil {
		writeFailure(w, err)
		return
	}
	if m == nil {
		writeNoContent(w)
		return
	}
	writeJSON(w, m)
}

// handleBrowse lists stored messages matching an optional CEL filter.
func (c *QueuesController) handleBrowse(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q, err := c.rt.Queue(query.Get("queue"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	filter := query.Get("filter")
	if len(filter) > maxFilterLen {
		writeError(w, http.StatusBadRequest, "Filter too long")
		return
	}
	msgs, err := q.Browse(r.Context(), queue.BrowseOptions{
		Filter:  filter,
		FromSeq: parseUint(query.Get("from")),
		Limit:   parseLimit(query.Get("limit")),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if msgs == nil {
		msgs = []*message.Message{}
	}
	writeJSON(w, browseResp{Queue: q.ID(), Messages: msgs})
}

// handleStats returns one queue's stats, or every queue's when no queue is named.
func (c *QueuesController) handleStats(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("queue")
	if name != "" {
		q, err := c.rt.Queue(name)
		if err != nil {
			writeFailure(w, err)
			return
		}
		st, err := q.Stats()
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, st)
		return
	}
	all := make([]queue.Stats, 0)
	for _, n := range c.rt.Queues() {
		q, err := c.rt.Queue(n)
		if err != nil {
			continue
		}
		st, err := q.Stats()
		if err != nil {
			writeFailure(w, err)
			return
		}
		all = append(all, st)
	}
	writeJSON(w, map[string]any{"queues": all})
}

func (c *QueuesController) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	q, err := c.rt.Queue(req.Queue)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := q.Shutdown(); err != nil {
		writeFailure(w, err)
		return
	}
	writeNoContent(w)
}
