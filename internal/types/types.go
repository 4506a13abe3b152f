package types

// ClientMessage is what the presentation surface sends over the websocket.
type ClientMessage struct {
	Type      string   `json:"type"`
	Frequency *float64 `json:"frequency,omitempty"`
	EarSide   *int     `json:"earSide,omitempty"`
}

const (
	ClientPTTPress        = "ptt-press"
	ClientPTTRelease      = "ptt-release"
	ClientWindowMinimize  = "window-minimize"
	ClientWindowMaximize  = "window-maximize"
	ClientWindowClose     = "window-close"
	ClientFrequencyReport = "frequency-report"
	ClientEarSideReport   = "ear-side-report"
)

type ServerMessage struct {
	Type    string `json:"type"` // "event" | "ack" | "error"
	Event   string `json:"event,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Seq     int    `json:"seq"`
	Error   string `json:"error,omitempty"`
}
