package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/api/middleware"
	"github.com/notifyhub/delivery-dispatch/internal/directory"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// QueueHandler exposes a read-only view of the queues the dispatcher is
// currently consuming. Intended for operators poking at a running instance.
type QueueHandler struct {
	dir    *directory.Directory
	logger *zap.Logger
}

func NewQueueHandler(dir *directory.Directory, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{dir: dir, logger: logger}
}

type queueView struct {
	Queue    string `json:"queue"`
	Backend  string `json:"backend"`
	Identity string `json:"identity"`
}

// List handles GET /api/v1/queues
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.dir.Snapshot()
	views := make([]queueView, 0, len(entries))
	for _, e := range entries {
		views = append(views, queueView{
			Queue:    e.Queue,
			Backend:  string(e.Kind),
			Identity: e.Identity,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(views),
		"queues": views,
	})
}

// GetByName handles GET /api/v1/queues/{name}
func (h *QueueHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, ok := h.dir.Lookup(name)
	if !ok {
		h.logger.Debug("queue not in directory",
			zap.String("queue", name),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		mapError(w, domain.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, queueView{
		Queue:    e.Queue,
		Backend:  string(e.Kind),
		Identity: e.Identity,
	})
}
