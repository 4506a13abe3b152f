package types

// StatusResponse is the body of GET /status. ServerURL is null while not
// connected.
type StatusResponse struct {
	Running    bool    `json:"running"`
	Status     string  `json:"status"`
	PTTPressed bool    `json:"pttPressed"`
	Connected  bool    `json:"connected"`
	ServerURL  *string `json:"serverURL"`
}

// PortDescriptor is written to the port file after the bridge binds so the
// game can find it.
type PortDescriptor struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}
