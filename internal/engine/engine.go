package engine

import (
	"errors"
	"time"
)

var ErrMissingURL = errors.New("missing url")
var ErrMissingSurface = errors.New("missing surface id")
var ErrUnsupportedCommand = errors.New("unsupported command")

// State is the single process-wide session. An empty ConnectionURL means
// no presentation target is connected; a zero LastHeartbeatAt means no
// heartbeat or connect has been seen since the last reset.
type State struct {
	ConnectionURL        string
	PTTPressed           bool
	LastHeartbeatAt      time.Time
	PresentationAttached bool
	SurfaceID            string
}

type CommandType string

const (
	CmdConnect            CommandType = "Connect"
	CmdDisconnect         CommandType = "Disconnect"
	CmdTouchHeartbeat     CommandType = "TouchHeartbeat"
	CmdSetPTT             CommandType = "SetPTT"
	CmdAttachPresentation CommandType = "AttachPresentation"
	CmdDetachPresentation CommandType = "DetachPresentation"
	CmdCheckHeartbeat     CommandType = "CheckHeartbeat"
)

/*
	CmdConnect            -> EvtConnect (+ EvtStatusChange)
	CmdDisconnect         -> EvtPTTRelease if held -> EvtDisconnect (+ EvtStatusChange)
	CmdTouchHeartbeat     -> nothing, only the timestamp moves
	CmdSetPTT             -> EvtPTTPress | EvtPTTRelease, only on a real transition with a surface attached
	CmdAttachPresentation -> EvtStatus (+ EvtStatusChange)
	CmdDetachPresentation -> same reset as disconnect, reason presentation_detached
	CmdCheckHeartbeat     -> same reset as disconnect, reason heartbeat_timeout, only when stale
*/

type Command struct {
	Type      CommandType
	URL       string
	Pressed   bool
	Reason    DisconnectReason
	SurfaceID string
	Now       time.Time
	Timeout   time.Duration
}

type DisconnectReason string

const (
	ReasonManual               DisconnectReason = "manual"
	ReasonHeartbeatTimeout     DisconnectReason = "heartbeat_timeout"
	ReasonPresentationDetached DisconnectReason = "presentation_detached"
)

type EventType string

const (
	EvtPTTPress            EventType = "ptt-press"
	EvtPTTRelease          EventType = "ptt-release"
	EvtConnect             EventType = "connect"
	EvtDisconnect          EventType = "disconnect"
	EvtFrequencyChange     EventType = "frequency-change"
	EvtFrequenciesUpdate   EventType = "frequencies-update"
	EvtActiveChannelChange EventType = "active-channel-change"
	EvtEarSideChange       EventType = "ear-side-change"
	EvtFrequencyDisconnect EventType = "frequency-disconnect"
	EvtStatusChange        EventType = "status-change"
	EvtStatus              EventType = "status"
)

// Event is what the presentation surface receives. Seq is stamped by the
// session owner when the event leaves it.
type Event struct {
	Type    EventType
	Payload any
	Seq     int
}

type ConnectPayload struct {
	URL string `json:"url"`
}

type DisconnectPayload struct {
	Reason DisconnectReason `json:"reason"`
}

type StatusPayload struct {
	Status     Status  `json:"status"`
	ServerURL  *string `json:"serverURL"`
	PTTPressed bool    `json:"pttPressed"`
}

type EarSidePayload struct {
	Frequency string  `json:"frequency"`
	EarSide   EarSide `json:"earSide"`
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s
	var events []Event

	switch cmd.Type {
	case CmdConnect:
		if cmd.URL == "" {
			return nil, s, ErrMissingURL
		}
		newState.ConnectionURL = cmd.URL
		newState.LastHeartbeatAt = cmd.Now
		events = append(events, Event{Type: EvtConnect, Payload: ConnectPayload{URL: cmd.URL}})

	case CmdDisconnect:
		reason := cmd.Reason
		if reason == "" {
			reason = ReasonManual
		}
		events, newState = reset(s, reason)

	case CmdTouchHeartbeat:
		newState.LastHeartbeatAt = cmd.Now

	case CmdSetPTT:
		if cmd.Pressed == s.PTTPressed || !s.PresentationAttached {
			return nil, s, nil
		}
		newState.PTTPressed = cmd.Pressed
		if cmd.Pressed {
			events = append(events, Event{Type: EvtPTTPress})
		} else {
			events = append(events, Event{Type: EvtPTTRelease})
		}

	case CmdAttachPresentation:
		if cmd.SurfaceID == "" {
			return nil, s, ErrMissingSurface
		}
		newState.PresentationAttached = true
		newState.SurfaceID = cmd.SurfaceID
		events = append(events, Event{Type: EvtStatus, Payload: statusPayload(newState)})

	case CmdDetachPresentation:
		// A surface that was already replaced must not tear down its successor.
		if !s.PresentationAttached || cmd.SurfaceID != s.SurfaceID {
			return nil, s, nil
		}
		events, newState = reset(s, ReasonPresentationDetached)
		newState.PresentationAttached = false
		newState.SurfaceID = ""

	case CmdCheckHeartbeat:
		if !IsHeartbeatStale(s, cmd.Now, cmd.Timeout) {
			return nil, s, nil
		}
		events, newState = reset(s, ReasonHeartbeatTimeout)

	default:
		return nil, s, ErrUnsupportedCommand
	}

	if ResolveStatus(s.ConnectionURL, s.PresentationAttached) != ResolveStatus(newState.ConnectionURL, newState.PresentationAttached) {
		events = append(events, Event{Type: EvtStatusChange, Payload: statusPayload(newState)})
	}
	return events, newState, nil
}

// reset clears the connection, the PTT flag and the heartbeat. A held PTT is
// released before the disconnect is announced.
func reset(s State, reason DisconnectReason) ([]Event, State) {
	var events []Event
	if s.PTTPressed {
		events = append(events, Event{Type: EvtPTTRelease})
	}
	if reason != ReasonPresentationDetached || s.ConnectionURL != "" {
		events = append(events, Event{Type: EvtDisconnect, Payload: DisconnectPayload{Reason: reason}})
	}

	s.ConnectionURL = ""
	s.PTTPressed = false
	s.LastHeartbeatAt = time.Time{}
	return events, s
}

// IsHeartbeatStale reports whether an active connection has gone longer than
// timeout without a heartbeat.
func IsHeartbeatStale(s State, now time.Time, timeout time.Duration) bool {
	if s.ConnectionURL == "" || s.LastHeartbeatAt.IsZero() {
		return false
	}
	return now.Sub(s.LastHeartbeatAt) > timeout
}

func statusPayload(s State) StatusPayload {
	p := StatusPayload{
		Status:     ResolveStatus(s.ConnectionURL, s.PresentationAttached),
		PTTPressed: s.PTTPressed,
	}
	if s.ConnectionURL != "" {
		url := s.ConnectionURL
		p.ServerURL = &url
	}
	return p
}
