package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/DoyleJ11/radio-bridge/internal/engine"
	"github.com/DoyleJ11/radio-bridge/internal/session"
	"github.com/DoyleJ11/radio-bridge/pkg/types"
)

const maxBodySize = 1 << 20 // 1 MB

const (
	msgInvalidJSON       = "Invalid JSON"
	msgNotFound          = "Not found"
	msgMissingURL        = "Missing url parameter"
	msgMissingFrequency  = "Missing frequency parameter"
	msgFrequenciesArray  = "frequencies must be an array"
	msgFrequenciesFormat = "Invalid frequency format: each entry needs a numeric frequency and an earSide of 0 (left), 1 (right), or 2 (both)"
	msgFrequencyNumber   = "frequency must be a number"
	msgEarSideTypes      = "frequency and earSide must be numbers"
	msgEarSideRange      = "earSide must be 0 (left), 1 (right), or 2 (both)"
	msgShuttingDown      = "Bridge is shutting down"
)

var errInvalidJSON = errors.New("invalid json")

// readBody decodes a JSON body. Only unreadable or unparsable input is an
// error; an empty body, null, or any well-formed non-object value decodes to
// an empty object so each route reports its own missing field.
func readBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	body, isObject := v.(map[string]any)
	if !isObject {
		return map[string]any{}, nil
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

// writeSessionError covers the only way a session call fails once input is
// validated: the bridge is going away.
func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrMissingURL) {
		writeError(w, http.StatusBadRequest, msgMissingURL)
		return
	}
	writeError(w, http.StatusServiceUnavailable, msgShuttingDown)
}

func ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, types.SuccessResponse{Success: true})
}

func PTTPress(s *session.Session) http.HandlerFunc {
	return pttHandler(s, true)
}

func PTTRelease(s *session.Session) http.HandlerFunc {
	return pttHandler(s, false)
}

// pttHandler always answers success; a press while pressed, or with no
// surface attached, is a silent no-op.
func pttHandler(s *session.Session, pressed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.SetPTT(r.Context(), pressed); err != nil {
			writeSessionError(w, err)
			return
		}
		ok(w)
	}
}

func Status(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.Snapshot(r.Context())
		if err != nil {
			writeSessionError(w, err)
			return
		}
		resp := types.StatusResponse{
			Running:    true,
			Status:     string(view.Status),
			PTTPressed: view.State.PTTPressed,
			Connected:  view.State.ConnectionURL != "",
		}
		if view.State.ConnectionURL != "" {
			url := view.State.ConnectionURL
			resp.ServerURL = &url
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func Connect(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		url, _ := body["url"].(string)
		if url == "" {
			writeError(w, http.StatusBadRequest, msgMissingURL)
			return
		}
		if _, err := s.Connect(r.Context(), url); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ConnectResponse{Success: true, URL: url})
	}
}

func Disconnect(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.Disconnect(r.Context(), engine.ReasonManual); err != nil {
			writeSessionError(w, err)
			return
		}
		ok(w)
	}
}

func Heartbeat(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.TouchHeartbeat(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		ok(w)
	}
}

// Frequency is the legacy single-frequency route. Any defined value is
// accepted and forwarded as text.
func Frequency(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		freq, present := body["frequency"]
		if !present {
			writeError(w, http.StatusBadRequest, msgMissingFrequency)
			return
		}
		ev := engine.Event{Type: engine.EvtFrequencyChange, Payload: frequencyText(freq)}
		if err := s.Emit(r.Context(), ev); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.FrequencyResponse{Success: true, Frequency: freq})
	}
}

func Frequencies(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		list, isList := body["frequencies"].([]any)
		if !isList {
			writeError(w, http.StatusBadRequest, msgFrequenciesArray)
			return
		}
		ds, valid := engine.ParseFrequencyDescriptorList(list)
		if !valid {
			writeError(w, http.StatusBadRequest, msgFrequenciesFormat)
			return
		}
		ev := engine.Event{Type: engine.EvtFrequenciesUpdate, Payload: engine.CanonicalizeAll(ds)}
		if err := s.Emit(r.Context(), ev); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.CountResponse{Success: true, Count: len(ds)})
	}
}

func ActiveChannel(s *session.Session) http.HandlerFunc {
	return numericFrequencyHandler(s, engine.EvtActiveChannelChange)
}

func FrequencyDisconnect(s *session.Session) http.HandlerFunc {
	return numericFrequencyHandler(s, engine.EvtFrequencyDisconnect)
}

func numericFrequencyHandler(s *session.Session, evType engine.EventType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		freq, isNum := engine.AsNumber(body["frequency"])
		if !isNum {
			writeError(w, http.StatusBadRequest, msgFrequencyNumber)
			return
		}
		ev := engine.Event{Type: evType, Payload: engine.ToCanonicalFrequencyString(freq)}
		if err := s.Emit(r.Context(), ev); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.FrequencyResponse{Success: true, Frequency: freq})
	}
}

func EarSide(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}
		freq, freqOK := engine.AsNumber(body["frequency"])
		_, sideOK := engine.AsNumber(body["earSide"])
		if !freqOK || !sideOK {
			writeError(w, http.StatusBadRequest, msgEarSideTypes)
			return
		}
		side, inRange := engine.ParseEarSide(body["earSide"])
		if !inRange {
			writeError(w, http.StatusBadRequest, msgEarSideRange)
			return
		}
		ev := engine.Event{
			Type: engine.EvtEarSideChange,
			Payload: engine.EarSidePayload{
				Frequency: engine.ToCanonicalFrequencyString(freq),
				EarSide:   side,
			},
		}
		if err := s.Emit(r.Context(), ev); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.EarSideResponse{Success: true, Frequency: freq, EarSide: int(side)})
	}
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// frequencyText turns whatever the legacy route received into the
// string-typed form the surface expects.
func frequencyText(v any) string {
	if n, isNum := engine.AsNumber(v); isNum {
		return engine.ToCanonicalFrequencyString(n)
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return "null"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
