// Package types holds the JSON bodies of the bridge's HTTP API, for use by
// the game process.
package types

// Game -> Bridge
// POST /connect             {url: string}
// POST /frequency           {frequency: any}
// POST /frequencies         {frequencies: [{frequency: number, earSide: 0|1|2}]}
// POST /active-channel      {frequency: number}
// POST /ear-side            {frequency: number, earSide: 0|1|2}
// POST /frequency/disconnect {frequency: number}
// POST /ptt/press, /ptt/release, /disconnect, /heartbeat: no body

// Bridge -> Game

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ConnectResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type FrequencyResponse struct {
	Success   bool `json:"success"`
	Frequency any  `json:"frequency"`
}

type CountResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type EarSideResponse struct {
	Success   bool    `json:"success"`
	Frequency float64 `json:"frequency"`
	EarSide   int     `json:"earSide"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
