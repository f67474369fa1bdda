package controllers

import (
	"net/http"

	"github.com/rzbill/haywire/internal/runtime"
	logpkg "github.com/rzbill/haywire/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	queues  *QueuesController
}

// NewControllerRegistry creates a new controller registry over rt.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		queues:  NewQueuesController(rt, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.queues.RegisterRoutes(mux)
}
