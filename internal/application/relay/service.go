// Package relay wires the conversation store, the assistant stream, the
// throttler, the chat surface, and the action pipeline into one request
// lifecycle.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/pkg/throttle"
	"github.com/doeshing/chatwork/internal/ports"
)

// Service orchestrates one exchange end-to-end. Fields are injected by the
// container.
type Service struct {
	Store          ports.ConversationStore
	Assistant      ports.Assistant
	Surface        ports.ChatSurface
	Parser         ports.ActionParser
	Runner         ports.ActionRunner
	Transcripts    ports.TranscriptStore
	Logger         ports.Logger
	UpdateInterval time.Duration
	AutoExecute    bool
}

func (s *Service) check() error {
	if s.Store == nil || s.Assistant == nil || s.Surface == nil ||
		s.Parser == nil || s.Runner == nil || s.Logger == nil {
		return errors.New("relay.Service dependencies not satisfied")
	}
	return nil
}

// HandleMessage runs the streaming card path for one inbound message.
// Same-session invocations are serialized by the caller via the message
// dedup boundary; this method assumes it is the only writer for the session.
func (s *Service) HandleMessage(ctx context.Context, msg domain.InboundMessage) error {
	if err := s.check(); err != nil {
		return err
	}

	session := s.Store.Get(msg.SessionKey)
	prompt := renderPrompt(session.Turns, composeText(msg))
	s.Store.Append(msg.SessionKey, domain.RoleUser, msg.Text)
	s.saveTranscript(msg.SessionKey, domain.RoleUser, msg.Text, "", false)

	stream, err := s.Assistant.ChatStream(ctx, prompt, msg.SessionKey)
	if err != nil {
		// Typically a missing claude binary; abort cleanly with a
		// user-visible reply.
		if replyErr := s.Surface.ReplyText(ctx, msg.MessageID, "Error: "+err.Error()); replyErr != nil {
			s.Logger.Error("error reply failed", replyErr, map[string]interface{}{"message_id": msg.MessageID})
		}
		return err
	}

	target, openErr := s.Surface.Open(ctx, msg.MessageID)
	if openErr != nil {
		// No streaming surface; collect the whole reply and send it once.
		s.Logger.Warn("streaming surface unavailable, falling back to plain reply", map[string]interface{}{
			"message_id": msg.MessageID,
			"error":      openErr.Error(),
		})
		full := throttle.New(s.UpdateInterval).Run(stream.Fragments(), func(string, bool) {})
		if full == "" {
			if serr := stream.Err(); serr != nil {
				full = "Error: " + serr.Error()
			}
		}
		if replyErr := s.Surface.ReplyText(ctx, msg.MessageID, full); replyErr != nil {
			s.Logger.Error("fallback reply failed", replyErr, map[string]interface{}{"message_id": msg.MessageID})
		}
		return s.finishExchange(ctx, msg, full, stream.Err())
	}

	seq := 0
	full := throttle.New(s.UpdateInterval).Run(stream.Fragments(), func(text string, final bool) {
		seq++
		if final {
			if text == "" {
				if serr := stream.Err(); serr != nil {
					text = "Error: " + serr.Error()
				} else {
					text = "(no response)"
				}
			}
			s.Surface.Finalize(ctx, target, text, seq)
			return
		}
		if !s.Surface.Update(ctx, target, text, seq) {
			// Skip and continue; the final flush converges the card.
			s.Logger.Warn("card update skipped", map[string]interface{}{"seq": seq})
		}
	})

	return s.finishExchange(ctx, msg, full, stream.Err())
}

// finishExchange records the assistant turn and handles any embedded action.
func (s *Service) finishExchange(ctx context.Context, msg domain.InboundMessage, full string, streamErr error) error {
	if full != "" {
		s.Store.Append(msg.SessionKey, domain.RoleAssistant, full)
		s.saveTranscript(msg.SessionKey, domain.RoleAssistant, full, "", false)
	}
	if streamErr != nil {
		s.Logger.Error("assistant stream failed", streamErr, map[string]interface{}{
			"session": msg.SessionKey,
			"partial": len(full),
		})
		return streamErr
	}

	req, ok := s.Parser.Parse(full)
	if !ok {
		return nil
	}
	if !s.AutoExecute {
		s.Logger.Info("action detected but auto-execute is disabled", map[string]interface{}{
			"session": msg.SessionKey,
			"action":  string(req.Type),
		})
		return nil
	}

	report := s.Runner.Execute(ctx, req)
	s.saveTranscript(msg.SessionKey, domain.RoleAssistant, report.Render(), string(req.Type), report.Success)
	if err := s.Surface.ReplyText(ctx, msg.MessageID, report.Render()); err != nil {
		s.Logger.Error("action report reply failed", err, map[string]interface{}{"message_id": msg.MessageID})
	}
	return nil
}

// Chat runs the blocking (non-streaming) path used by the REST API and the
// REPL.
func (s *Service) Chat(ctx context.Context, sessionKey, text string, autoExecute bool) (domain.ChatResult, error) {
	if err := s.check(); err != nil {
		return domain.ChatResult{}, err
	}

	session := s.Store.Get(sessionKey)
	prompt := renderPrompt(session.Turns, text)
	s.Store.Append(sessionKey, domain.RoleUser, text)
	s.saveTranscript(sessionKey, domain.RoleUser, text, "", false)

	response, err := s.Assistant.Chat(ctx, prompt, sessionKey)
	if err != nil {
		return domain.ChatResult{SessionKey: sessionKey}, err
	}

	s.Store.Append(sessionKey, domain.RoleAssistant, response)
	s.saveTranscript(sessionKey, domain.RoleAssistant, response, "", false)

	result := domain.ChatResult{Response: response, SessionKey: sessionKey}
	if req, ok := s.Parser.Parse(response); ok {
		result.Action = &req
		if autoExecute {
			report := s.Runner.Execute(ctx, req)
			result.ActionResult = report.Render()
			s.saveTranscript(sessionKey, domain.RoleAssistant, report.Render(), string(req.Type), report.Success)
		}
	}
	return result, nil
}

// StreamChat runs one exchange and invokes onFragment for each incremental
// piece of the reply as it arrives. The caller decides what to do with any
// parsed action; nothing is auto-executed here. Used by the terminal REPL.
func (s *Service) StreamChat(ctx context.Context, sessionKey, text string, onFragment func(string)) (domain.ChatResult, error) {
	if err := s.check(); err != nil {
		return domain.ChatResult{}, err
	}

	session := s.Store.Get(sessionKey)
	prompt := renderPrompt(session.Turns, text)
	s.Store.Append(sessionKey, domain.RoleUser, text)
	s.saveTranscript(sessionKey, domain.RoleUser, text, "", false)

	stream, err := s.Assistant.ChatStream(ctx, prompt, sessionKey)
	if err != nil {
		return domain.ChatResult{SessionKey: sessionKey}, err
	}

	var buf strings.Builder
	for frag := range stream.Fragments() {
		buf.WriteString(frag)
		onFragment(frag)
	}
	response := buf.String()
	if response != "" {
		s.Store.Append(sessionKey, domain.RoleAssistant, response)
		s.saveTranscript(sessionKey, domain.RoleAssistant, response, "", false)
	}
	result := domain.ChatResult{Response: response, SessionKey: sessionKey}
	if serr := stream.Err(); serr != nil {
		return result, serr
	}
	if req, ok := s.Parser.Parse(response); ok {
		result.Action = &req
	}
	return result, nil
}

// ExecuteAction runs a caller-supplied action through the policy pipeline.
func (s *Service) ExecuteAction(ctx context.Context, req domain.ActionRequest) domain.ExecutionReport {
	return s.Runner.Execute(ctx, req)
}

// ClearSession resets one conversation.
func (s *Service) ClearSession(sessionKey string) {
	s.Store.Clear(sessionKey)
}

func (s *Service) saveTranscript(sessionKey string, role domain.Role, content, action string, actionOK bool) {
	if s.Transcripts == nil {
		return
	}
	err := s.Transcripts.Save(domain.TranscriptRecord{
		Timestamp:  time.Now(),
		SessionKey: sessionKey,
		Role:       role,
		Content:    content,
		Action:     action,
		ActionOK:   actionOK,
	})
	if err != nil {
		s.Logger.Warn("transcript save failed", map[string]interface{}{"error": err.Error()})
	}
}

// composeText folds attachment paths into the prompt text the way the chat
// platform handler always has.
func composeText(msg domain.InboundMessage) string {
	text := msg.Text
	if len(msg.ImagePaths) > 0 {
		text += fmt.Sprintf("\n\nPlease look at these images and answer: %s", strings.Join(msg.ImagePaths, ", "))
	}
	if len(msg.FilePaths) > 0 {
		text += fmt.Sprintf("\n\nPlease look at these files: %s", strings.Join(msg.FilePaths, ", "))
	}
	return text
}

// renderPrompt prefixes the current message with the recent conversation so
// each stateless CLI invocation still sees its context.
func renderPrompt(turns []domain.Turn, text string) string {
	if len(turns) == 0 {
		return text
	}
	var builder strings.Builder
	builder.WriteString("[Context: previous conversation]\n")
	for _, turn := range turns {
		builder.WriteString(string(turn.Role))
		builder.WriteString(": ")
		builder.WriteString(turn.Content)
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
	builder.WriteString(text)
	return builder.String()
}
