package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/DoyleJ11/radio-bridge/internal/engine"
	"github.com/DoyleJ11/radio-bridge/internal/hub"
	"github.com/DoyleJ11/radio-bridge/internal/session"
	"github.com/DoyleJ11/radio-bridge/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type WindowAction string

const (
	WindowMinimize WindowAction = "minimize"
	WindowMaximize WindowAction = "maximize"
	WindowClose    WindowAction = "close"
)

// WindowController performs window actions requested by the surface. The
// bridge only passes them through.
type WindowController interface {
	HandleWindowAction(ctx context.Context, action WindowAction) error
}

// LogWindowController records window actions and does nothing else.
type LogWindowController struct {
	Logger *zap.Logger
}

func (c LogWindowController) HandleWindowAction(_ context.Context, action WindowAction) error {
	if c.Logger != nil {
		c.Logger.Info("window action", zap.String("action", string(action)))
	}
	return nil
}

type Options struct {
	// Secret, when set, must be presented as ?token= or a bearer token.
	Secret string
	Window WindowController
	Logger *zap.Logger
}

func Handler(s *session.Session, h *hub.Hub, opts Options) http.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("surface")
	window := opts.Window
	if window == nil {
		window = LogWindowController{Logger: logger}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !authorize(r, opts.Secret) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*"},
		})
		if err != nil {
			logger.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		surfaceID := uuid.NewString()
		log := logger.With(zap.String("surface", surfaceID))
		out := make(chan engine.Event, 32)

		// Register with the hub first so the attach snapshot has somewhere to go.
		if _, err := h.Attach(r.Context(), surfaceID, out); err != nil {
			conn.Close(websocket.StatusInternalError, "hub unavailable")
			return
		}
		if _, err := s.AttachPresentation(r.Context(), surfaceID); err != nil {
			_, _ = h.Detach(context.Background(), surfaceID)
			conn.Close(websocket.StatusInternalError, "session unavailable")
			return
		}
		log.Info("surface attached", zap.String("remote", r.RemoteAddr))

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if detachSurface(ctx, s, h, surfaceID) {
				log.Info("surface detached")
			} else {
				log.Info("replaced surface gone")
			}
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				msg := types.ServerMessage{Type: "event", Event: string(ev.Type), Payload: ev.Payload, Seq: ev.Seq}
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("marshal event", zap.String("event", string(ev.Type)), zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
			if writeCtx.Err() != nil {
				return
			}
			// The hub closed our outbox: another surface took over.
			conn.Close(websocket.StatusPolicyViolation, "replaced by another surface")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("surface read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reply(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}
			if !handleClientMessage(r.Context(), s, window, log, cm) {
				reply(r.Context(), conn, types.ServerMessage{Type: "error", Error: "unknown type"})
			}
		}
	}
}

// handleClientMessage routes a surface callback into the core. It reports
// false for message types it does not know.
func handleClientMessage(ctx context.Context, s *session.Session, window WindowController, log *zap.Logger, cm types.ClientMessage) bool {
	switch cm.Type {
	case types.ClientPTTPress, types.ClientPTTRelease:
		if _, err := s.SetPTT(ctx, cm.Type == types.ClientPTTPress); err != nil {
			log.Warn("ptt from surface failed", zap.Error(err))
		}

	case types.ClientWindowMinimize, types.ClientWindowMaximize, types.ClientWindowClose:
		action, _ := toWindowAction(cm.Type)
		if err := window.HandleWindowAction(ctx, action); err != nil {
			log.Warn("window action failed", zap.String("action", string(action)), zap.Error(err))
		}

	case types.ClientFrequencyReport, types.ClientEarSideReport:
		fields := []zap.Field{zap.String("type", cm.Type)}
		if cm.Frequency != nil {
			fields = append(fields, zap.String("frequency", engine.ToCanonicalFrequencyString(*cm.Frequency)))
		}
		if cm.EarSide != nil {
			fields = append(fields, zap.Stringer("earSide", engine.EarSide(*cm.EarSide)))
		}
		log.Info("surface report", fields...)

	default:
		return false
	}
	return true
}

// detachSurface releases the surface from the hub and, only if it was still
// the current surface there, from the session. A surface the hub already
// replaced never resets the session, whatever order the attach of its
// successor and this detach reach the session in.
func detachSurface(ctx context.Context, s *session.Session, h *hub.Hub, surfaceID string) bool {
	current, err := h.Detach(ctx, surfaceID)
	if err != nil || !current {
		return false
	}
	_, _ = s.DetachPresentation(ctx, surfaceID)
	return true
}

func toWindowAction(msgType string) (WindowAction, bool) {
	switch msgType {
	case types.ClientWindowMinimize:
		return WindowMinimize, true
	case types.ClientWindowMaximize:
		return WindowMaximize, true
	case types.ClientWindowClose:
		return WindowClose, true
	default:
		return "", false
	}
}

func reply(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func authorize(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	if r.URL.Query().Get("token") == secret {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == secret
}
