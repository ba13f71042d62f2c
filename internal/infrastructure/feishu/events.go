package feishu

import (
	"encoding/json"
	"strings"

	"github.com/doeshing/chatwork/internal/domain"
)

// Event kinds the webhook distinguishes.
const (
	EventVerification = "url_verification"
	EventMessage      = "message"
	EventIgnored      = "ignored"
)

// Event is a decoded webhook payload.
type Event struct {
	Type      string
	Challenge string
	Message   domain.InboundMessage
}

type webhookPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Header    struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Message struct {
			MessageID   string `json:"message_id"`
			ChatID      string `json:"chat_id"`
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

// ParseEvent decodes a webhook body into an Event. Payloads that are neither
// a verification challenge nor a receivable message are reported as ignored,
// not as errors.
func ParseEvent(body []byte) (Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, err
	}

	if payload.Type == EventVerification {
		return Event{Type: EventVerification, Challenge: payload.Challenge}, nil
	}

	if payload.Header.EventType != "im.message.receive_v1" {
		return Event{Type: EventIgnored}, nil
	}

	msg := payload.Event.Message
	text := extractText(msg.MessageType, msg.Content)
	if text == "" {
		return Event{Type: EventIgnored}, nil
	}

	return Event{
		Type: EventMessage,
		Message: domain.InboundMessage{
			SessionKey: "feishu_" + msg.ChatID,
			MessageID:  msg.MessageID,
			ChatID:     msg.ChatID,
			Text:       text,
		},
	}, nil
}

// extractText flattens the platform's content JSON to plain prompt text.
// Text messages carry {"text": ...}; rich posts carry nested tag runs.
func extractText(messageType, content string) string {
	switch messageType {
	case "text":
		var decoded struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(content), &decoded); err != nil {
			return ""
		}
		return strings.TrimSpace(decoded.Text)
	case "post":
		var decoded struct {
			Title   string `json:"title"`
			Content [][]struct {
				Tag  string `json:"tag"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal([]byte(content), &decoded); err != nil {
			return ""
		}
		var builder strings.Builder
		if decoded.Title != "" {
			builder.WriteString(decoded.Title)
			builder.WriteString("\n")
		}
		for _, line := range decoded.Content {
			for _, run := range line {
				if run.Tag == "text" {
					builder.WriteString(run.Text)
				}
			}
			builder.WriteString("\n")
		}
		return strings.TrimSpace(builder.String())
	default:
		return ""
	}
}
