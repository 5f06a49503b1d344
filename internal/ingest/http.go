package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"monitoring/internal/clock"
)

// HTTPHandler decodes command lines and forwards them to sink.
// Params: sink receives parsed commands, clock stamps receive time, max body limits payload size.
// Returns: HTTP handler for command endpoint.
type HTTPHandler struct {
	sink        CommandSink
	clock       clock.Clock
	maxBodySize int64
	logger      *slog.Logger
}

type acceptedResponse struct {
	Accepted []string `json:"accepted"`
}

type rejectedResponse struct {
	Error    string   `json:"error"`
	Accepted []string `json:"accepted,omitempty"`
}

// NewHTTPHandler creates command HTTP handler.
// Params: sink, clock (nil selects real clock), max request body size in bytes, and optional logger.
// Returns: configured handler.
func NewHTTPHandler(sink CommandSink, clk clock.Clock, maxBodySize int64, logger *slog.Logger) *HTTPHandler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &HTTPHandler{sink: sink, clock: clk, maxBodySize: maxBodySize, logger: logger}
}

// ServeHTTP handles one command submission.
// Params: HTTP request/response writer pair.
// Returns: 202 with command ids, 400 on parse errors, 503 when queueing fails.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, rejectedResponse{Error: err.Error()})
		return
	}

	commands, err := decodeCommandPayload(body, h.clock.Now())
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, rejectedResponse{Error: err.Error()})
		return
	}

	accepted := make([]string, 0, len(commands))
	for _, cmd := range commands {
		if err := h.sink.Submit(request.Context(), cmd); err != nil {
			if h.logger != nil && !errors.Is(err, request.Context().Err()) {
				h.logger.Error("command submit failed", "command", cmd.Name, "id", cmd.ID, "error", err.Error())
			}
			writeJSON(writer, http.StatusServiceUnavailable, rejectedResponse{Error: err.Error(), Accepted: accepted})
			return
		}
		accepted = append(accepted, cmd.ID)
	}
	writeJSON(writer, http.StatusAccepted, acceptedResponse{Accepted: accepted})
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}
