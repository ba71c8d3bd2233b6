package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dotcommander/agentd/internal/agent"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
)

type chatRequest struct {
	Message   string `json:"message"`
	AgentType string `json:"agentType"`
}

type chatResponse struct {
	Success  bool           `json:"success"`
	Response string         `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
	Category agent.Category `json:"category,omitempty"`
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults"`
}

type searchResponse struct {
	Success  bool           `json:"success"`
	Summary  string         `json:"summary,omitempty"`
	Error    string         `json:"error,omitempty"`
	Category agent.Category `json:"category,omitempty"`
}

// Execution failures come back as HTTP 200 with success false. Non-200
// status is reserved for transport-level faults: bodies that do not decode
// and unknown agent types.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	var a *agent.Agent
	var useTools bool
	switch agent.Type(req.AgentType) {
	case agent.TypeChat, "":
		a = s.chat
	case agent.TypeSearch:
		a = s.search
		useTools = true
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("unknown agent type %q", req.AgentType))
		return
	}

	result := a.Execute(r.Context(), req.Message, useTools)
	s.respondJSON(w, http.StatusOK, chatResponse{
		Success:  result.Success,
		Response: result.Content,
		Error:    result.Error,
		Category: result.Category,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}
	if req.MaxResults > maxMaxResults {
		req.MaxResults = maxMaxResults
	}

	prompt := ""
	if req.Query != "" {
		prompt = fmt.Sprintf(
			"Search the web for: %s\n\nReturn up to %d relevant results. Summarize the findings and cite your sources.",
			req.Query, req.MaxResults,
		)
	}

	result := s.search.Execute(r.Context(), prompt, true)
	s.respondJSON(w, http.StatusOK, searchResponse{
		Success:  result.Success,
		Summary:  result.Content,
		Error:    result.Error,
		Category: result.Category,
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"agents": agent.Capabilities(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.logger.Error("handler error", "error", err, "status", status)
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
