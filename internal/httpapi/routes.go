package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/radio-bridge/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SetupRoutes builds the bridge API. surface, when non-nil, is mounted at
// /ws for the presentation surface.
func SetupRoutes(s *session.Session, surface http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := chi.NewRouter()
	r.Use(recoverJSON(logger), requestLog(logger), cors)
	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Post("/ptt/press", PTTPress(s))
	r.Post("/ptt/release", PTTRelease(s))
	r.Get("/status", Status(s))
	r.Post("/connect", Connect(s))
	r.Post("/disconnect", Disconnect(s))
	r.Post("/heartbeat", Heartbeat(s))
	r.Post("/frequency", Frequency(s))
	r.Post("/frequencies", Frequencies(s))
	r.Post("/active-channel", ActiveChannel(s))
	r.Post("/ear-side", EarSide(s))
	r.Post("/frequency/disconnect", FrequencyDisconnect(s))

	r.Get("/healthz", Healthz)
	if surface != nil {
		r.Method(http.MethodGet, "/ws", surface)
	}
	return r
}
