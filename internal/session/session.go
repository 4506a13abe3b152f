package session

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/radio-bridge/internal/engine"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("session closed")

// Dispatcher forwards events to the presentation surface.
type Dispatcher interface {
	Dispatch(ev engine.Event)
}

type Msg interface{ isSessionMsg() }

// Do applies a command and replies with the outcome.
type Do struct {
	Cmd   engine.Command
	Reply chan Result
}

func (Do) isSessionMsg() {}

// Emit forwards a stateless event in order with state events.
type Emit struct {
	Event engine.Event
}

func (Emit) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type Result struct {
	Version int
	State   engine.State
	Events  []engine.Event
	Err     error
}

// Changed reports whether the command produced any event.
func (r Result) Changed() bool { return len(r.Events) > 0 }

type View struct {
	Version int
	State   engine.State
	Status  engine.Status
}

type Options struct {
	Now    func() time.Time
	Logger *zap.Logger
}

// Session is the single writer of the session state. Router handlers, the
// heartbeat monitor and the presentation surface all go through its inbox.
type Session struct {
	inbox      chan Msg
	state      engine.State
	version    int
	dispatcher Dispatcher
	now        func() time.Time
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewSession(parent context.Context, d Dispatcher, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Session{
		inbox:      make(chan Msg, 64),
		state:      engine.NewState(),
		dispatcher: d,
		now:        opts.Now,
		logger:     opts.Logger.Named("session"),
		ctx:        ctx,
		cancel:     cancel,
	}

	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Do:
				msg.Reply <- s.apply(msg.Cmd)

			case Emit:
				s.dispatch(msg.Event)

			case GetState:
				msg.Reply <- View{
					Version: s.version,
					State:   s.state,
					Status:  s.state.Status(),
				}

			case Shutdown:
				s.cancel()
				return
			}
		}
	}
}

func (s *Session) apply(cmd engine.Command) Result {
	if cmd.Now.IsZero() {
		cmd.Now = s.now()
	}

	events, newState, err := engine.Apply(s.state, cmd)
	if err != nil {
		return Result{Version: s.version, State: s.state, Err: err}
	}
	if newState != s.state {
		s.version++
	}
	before := s.state.Status()
	s.state = newState

	if after := newState.Status(); after != before {
		s.logger.Info("status changed",
			zap.String("command", string(cmd.Type)),
			zap.String("from", string(before)),
			zap.String("to", string(after)),
			zap.Int("version", s.version),
		)
	}
	for _, ev := range events {
		if p, ok := ev.Payload.(engine.DisconnectPayload); ok {
			s.logger.Info("session disconnected", zap.String("reason", string(p.Reason)))
		}
		s.dispatch(ev)
	}
	return Result{Version: s.version, State: s.state, Events: events}
}

func (s *Session) dispatch(ev engine.Event) {
	if s.dispatcher == nil {
		return
	}
	ev.Seq = s.version
	s.dispatcher.Dispatch(ev)
}

// Expose the inbox so tests or other actors can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Apply sends cmd to the owner goroutine and waits for its result.
func (s *Session) Apply(ctx context.Context, cmd engine.Command) (Result, error) {
	reply := make(chan Result, 1)
	if err := s.send(ctx, Do{Cmd: cmd, Reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.ctx.Done():
		return Result{}, ErrClosed
	}
}

func (s *Session) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.ctx.Done():
		return View{}, ErrClosed
	}
}

func (s *Session) Emit(ctx context.Context, ev engine.Event) error {
	return s.send(ctx, Emit{Event: ev})
}

func (s *Session) Connect(ctx context.Context, url string) (Result, error) {
	return s.Apply(ctx, engine.Command{Type: engine.CmdConnect, URL: url})
}

func (s *Session) Disconnect(ctx context.Context, reason engine.DisconnectReason) (Result, error) {
	return s.Apply(ctx, engine.Command{Type: engine.CmdDisconnect, Reason: reason})
}

func (s *Session) TouchHeartbeat(ctx context.Context) (Result, error) {
	return s.Apply(ctx, engine.Command{Type: engine.CmdTouchHeartbeat})
}

// SetPTT reports whether a transition happened.
func (s *Session) SetPTT(ctx context.Context, pressed bool) (bool, error) {
	res, err := s.Apply(ctx, engine.Command{Type: engine.CmdSetPTT, Pressed: pressed})
	return res.Changed(), err
}

func (s *Session) AttachPresentation(ctx context.Context, surfaceID string) (Result, error) {
	return s.Apply(ctx, engine.Command{Type: engine.CmdAttachPresentation, SurfaceID: surfaceID})
}

func (s *Session) DetachPresentation(ctx context.Context, surfaceID string) (Result, error) {
	return s.Apply(ctx, engine.Command{Type: engine.CmdDetachPresentation, SurfaceID: surfaceID})
}

// CheckHeartbeat evaluates staleness inside the owner goroutine, so a
// connect or heartbeat applied first always wins over the check.
func (s *Session) CheckHeartbeat(ctx context.Context, now time.Time, timeout time.Duration) (bool, error) {
	res, err := s.Apply(ctx, engine.Command{Type: engine.CmdCheckHeartbeat, Now: now, Timeout: timeout})
	return engine.ContainsEvent(res.Events, engine.EvtDisconnect), err
}

func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}
