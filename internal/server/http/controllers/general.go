package controllers

import (
	"net/http"

	"github.com/rzbill/haywire/internal/runtime"
)

// GeneralController handles endpoints that are not tied to one queue.
type GeneralController struct {
	rt *runtime.Runtime
}

func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers:
// - Health checks (/v1/healthz)
// - Instance info (/v1/info)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/info", c.handleInfo)
}

// handleHealth returns 200 OK with {"status": "ok"} if healthy, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (c *GeneralController) handleInfo(w http.ResponseWriter, r *http.Request) {
	storeDriver, channelDriver := c.rt.Drivers()
	writeJSON(w, infoResp{
		StoreDriver:   storeDriver,
		ChannelDriver: channelDriver,
		Queues:        len(c.rt.Queues()),
	})
}
