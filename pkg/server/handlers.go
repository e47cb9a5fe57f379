package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mikan/convo/pkg/agent"
	"github.com/mikan/convo/pkg/session"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Prompt    string `json:"prompt"`
	Stream    bool   `json:"stream,omitempty"`
}

// ChatResponse is the non-streaming reply of POST /v1/chat.
type ChatResponse struct {
	SessionID string            `json:"session_id"`
	Result    *agent.TurnResult `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt cannot be empty")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}

	events, err := s.manager.StartTurn(r.Context(), sessionID, req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionBusy):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if req.Stream || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamChat(w, r, sessionID, events)
		return
	}

	s.awaitChat(w, sessionID, events)
}

// streamChat forwards turn events as SSE frames. The terminal event ends
// the stream.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, sessionID string, events <-chan agent.Event) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger := s.logger.With().Str("session_id", sessionID).Logger()

	for ev := range events {
		if err := sse.WriteEvent(string(ev.Type), ev); err != nil {
			// Client went away. Abort the turn and drain what remains.
			logger.Debug().Err(err).Msg("SSE write failed, aborting turn")
			s.manager.Abort(sessionID)
			for range events {
			}
			return
		}
	}
}

// awaitChat drains the turn and answers with a single JSON document.
func (s *Server) awaitChat(w http.ResponseWriter, sessionID string, events <-chan agent.Event) {
	var terminal agent.Event
	for ev := range events {
		if ev.Terminal() {
			terminal = ev
		}
	}

	switch terminal.Type {
	case agent.EventTurnComplete:
		writeJSON(w, http.StatusOK, ChatResponse{
			SessionID: sessionID,
			Result:    terminal.Result,
		})
	case agent.EventCancelled:
		writeJSON(w, http.StatusOK, errorResponse{Error: "turn cancelled", Kind: "cancelled"})
	case agent.EventError:
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: terminal.ErrorMessage,
			Kind:  string(terminal.ErrorKind),
		})
	default:
		writeError(w, http.StatusInternalServerError, "turn ended without a terminal event")
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.manager.Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": infos,
		"count":    len(infos),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	msgs, err := s.manager.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   msgs,
		"count":      len(msgs),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := s.manager.Clear(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "deleted": true})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := s.manager.Abort(sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "aborted": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	infos, err := s.manager.Sessions(r.Context())
	sessionCount := 0
	if err == nil {
		sessionCount = len(infos)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"sessions":       sessionCount,
	})
}
