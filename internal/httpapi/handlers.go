package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/service"
	"github.com/MimeLyc/travel-concierge/internal/synth"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type threadMessagesResponse struct {
	ThreadID string        `json:"thread_id"`
	Messages []llm.Message `json:"messages"`
}

type citiesResponse struct {
	Cities []cityResponse `json:"cities"`
}

type cityResponse struct {
	Name      string `json:"name"`
	Continent string `json:"continent"`
}

func newThreadID() string {
	return ulid.Make().String()
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = s.newID()
	}

	reply, err := s.concierge.Turn(r.Context(), threadID, req.Message)
	if err != nil {
		writeError(w, statusFor(err), service.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.concierge.Threads(r.Context())
	if err != nil {
		writeError(w, statusFor(err), service.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(r.PathValue("id"))
	if threadID == "" {
		writeError(w, http.StatusBadRequest, "missing thread id")
		return
	}
	msgs, err := s.concierge.History(r.Context(), threadID)
	if err != nil {
		writeError(w, statusFor(err), service.UserMessage(err))
		return
	}
	if msgs == nil {
		msgs = []llm.Message{}
	}
	writeJSON(w, http.StatusOK, threadMessagesResponse{ThreadID: threadID, Messages: msgs})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	continents := synth.SupportedCities()
	resp := citiesResponse{Cities: make([]cityResponse, 0, len(continents))}
	for _, name := range synth.CityNames() {
		resp.Cities = append(resp.Cities, cityResponse{Name: name, Continent: continents[name]})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
	})
}

func statusFor(err error) int {
	switch {
	case service.IsErrorType(err, service.ErrMissingInput), service.IsErrorType(err, service.ErrValidation):
		return http.StatusBadRequest
	case service.IsErrorType(err, service.ErrUpstream), service.IsErrorType(err, service.ErrClassification):
		return http.StatusBadGateway
	default:
		log.Error("HTTP request failed: %v", err)
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
