package hub

import (
	"context"

	"github.com/DoyleJ11/radio-bridge/internal/engine"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// AttachSurface makes Outbox the target of all further events. Any surface
// attached before is detached and its outbox closed. Reply receives the id
// of the replaced surface, or "".
type AttachSurface struct {
	SurfaceID string
	Outbox    chan engine.Event
	Reply     chan string
}

// DetachSurface is ignored unless SurfaceID is the current surface. Reply
// reports whether it was.
type DetachSurface struct {
	SurfaceID string
	Reply     chan bool
}

type Forward struct {
	Event engine.Event
}

type GetSurface struct {
	Reply chan string
}

type ShutdownHub struct{}

func (AttachSurface) isHubMsg() {}
func (DetachSurface) isHubMsg() {}
func (Forward) isHubMsg()       {}
func (GetSurface) isHubMsg()    {}
func (ShutdownHub) isHubMsg()   {}

// Hub forwards session events to the single attached presentation surface.
// With no surface attached, events are dropped.
type Hub struct {
	inbox     chan HubMsg
	surfaceID string
	outbox    chan engine.Event
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewHub(parent context.Context, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		logger: logger.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeOutbox()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case AttachSurface:
				replaced := h.surfaceID
				h.closeOutbox()
				h.surfaceID = msg.SurfaceID
				h.outbox = msg.Outbox
				if replaced != "" {
					h.logger.Info("surface replaced", zap.String("old", replaced), zap.String("new", msg.SurfaceID))
				}
				msg.Reply <- replaced

			case DetachSurface:
				current := msg.SurfaceID != "" && msg.SurfaceID == h.surfaceID
				if current {
					h.closeOutbox()
				}
				msg.Reply <- current

			case Forward:
				h.forward(msg.Event)

			case GetSurface:
				msg.Reply <- h.surfaceID

			case ShutdownHub:
				h.closeOutbox()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) forward(ev engine.Event) {
	if h.outbox == nil {
		h.logger.Debug("no surface attached, dropping event", zap.String("event", string(ev.Type)))
		return
	}
	select {
	case h.outbox <- ev:
		// ok
	default:
		// Surface is slow/full - drop the event, keep the surface.
		h.logger.Warn("surface outbox full, dropping event", zap.String("event", string(ev.Type)))
	}
}

func (h *Hub) closeOutbox() {
	if h.outbox != nil {
		close(h.outbox) // Tell the surface writer no more events
	}
	h.outbox = nil
	h.surfaceID = ""
}

// Dispatch queues ev for the attached surface. It never blocks past hub
// shutdown.
func (h *Hub) Dispatch(ev engine.Event) {
	select {
	case h.inbox <- Forward{Event: ev}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Attach(ctx context.Context, surfaceID string, outbox chan engine.Event) (string, error) {
	reply := make(chan string, 1)
	if err := h.send(ctx, AttachSurface{SurfaceID: surfaceID, Outbox: outbox, Reply: reply}); err != nil {
		return "", err
	}
	return recv(ctx, h.ctx, reply)
}

func (h *Hub) Detach(ctx context.Context, surfaceID string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.send(ctx, DetachSurface{SurfaceID: surfaceID, Reply: reply}); err != nil {
		return false, err
	}
	return recv(ctx, h.ctx, reply)
}

func (h *Hub) Surface(ctx context.Context) (string, error) {
	reply := make(chan string, 1)
	if err := h.send(ctx, GetSurface{Reply: reply}); err != nil {
		return "", err
	}
	return recv(ctx, h.ctx, reply)
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return context.Canceled
	}
}

func recv[T any](ctx, hubCtx context.Context, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-hubCtx.Done():
		return zero, context.Canceled
	}
}
