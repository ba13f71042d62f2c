package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/infrastructure/feishu"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// handleWebhook receives platform event callbacks. The handler acknowledges
// immediately and processes messages in the background so the platform does
// not retry on slow assistants.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	timestamp := r.Header.Get("X-Lark-Request-Timestamp")
	nonce := r.Header.Get("X-Lark-Request-Nonce")
	signature := r.Header.Get("X-Lark-Signature")
	if !s.verifier.VerifySignature(timestamp, nonce, string(body), signature) {
		s.logger.Warn("webhook signature mismatch", map[string]interface{}{"remote": r.RemoteAddr})
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad signature"})
		return
	}

	event, err := feishu.ParseEvent(body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]int{"code": 0})
		return
	}

	switch event.Type {
	case feishu.EventVerification:
		writeJSON(w, http.StatusOK, map[string]string{"challenge": event.Challenge})
	case feishu.EventMessage:
		if s.dedup.Seen(event.Message.MessageID) {
			writeJSON(w, http.StatusOK, map[string]int{"code": 0})
			return
		}
		msg := event.Message
		go func() {
			if err := s.relay.HandleMessage(context.Background(), msg); err != nil {
				s.logger.Error("relay failed", err, map[string]interface{}{
					"message_id": msg.MessageID,
					"session":    msg.SessionKey,
				})
			}
		}()
		writeJSON(w, http.StatusOK, map[string]int{"code": 0})
	default:
		writeJSON(w, http.StatusOK, map[string]int{"code": 0})
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message     string `json:"message"`
		SessionID   string `json:"session_id"`
		AutoExecute bool   `json:"auto_execute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message must not be empty"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	result, err := s.relay.Chat(r.Context(), req.SessionID, req.Message, req.AutoExecute)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	resp := map[string]interface{}{
		"response":   result.Response,
		"session_id": result.SessionKey,
	}
	if result.Action != nil {
		resp["action"] = result.Action
	}
	if result.ActionResult != "" {
		resp["action_result"] = result.ActionResult
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action *domain.ActionRequest `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must not be empty"})
		return
	}

	report := s.relay.ExecuteAction(r.Context(), *req.Action)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": report.Success,
		"result":  report.Render(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id must not be empty"})
		return
	}
	s.relay.ClearSession(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "session cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
