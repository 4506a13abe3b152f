package engine

type Status string

const (
	StatusConnected            Status = "CONNECTED"
	StatusWaitingForConnection Status = "WAITING_FOR_CONNECTION"
	StatusDisconnected         Status = "DISCONNECTED"
)

// ResolveStatus derives the connection status. A connection URL wins over
// everything else; without one, an attached surface means we are waiting.
func ResolveStatus(connectionURL string, presentationAttached bool) Status {
	if connectionURL != "" {
		return StatusConnected
	}
	if presentationAttached {
		return StatusWaitingForConnection
	}
	return StatusDisconnected
}

func (s State) Status() Status {
	return ResolveStatus(s.ConnectionURL, s.PresentationAttached)
}
