package feishu

import (
	"testing"
)

func TestParseEventVerification(t *testing.T) {
	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if event.Type != EventVerification || event.Challenge != "abc123" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestParseEventTextMessage(t *testing.T) {
	body := []byte(`{
		"header": {"event_type": "im.message.receive_v1"},
		"event": {
			"message": {
				"message_id": "om_1",
				"chat_id": "oc_9",
				"message_type": "text",
				"content": "{\"text\":\"hello bot\"}"
			}
		}
	}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if event.Type != EventMessage {
		t.Fatalf("type = %q", event.Type)
	}
	msg := event.Message
	if msg.MessageID != "om_1" || msg.ChatID != "oc_9" || msg.Text != "hello bot" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.SessionKey != "feishu_oc_9" {
		t.Fatalf("session key = %q", msg.SessionKey)
	}
}

func TestParseEventPostMessageFlattened(t *testing.T) {
	body := []byte(`{
		"header": {"event_type": "im.message.receive_v1"},
		"event": {
			"message": {
				"message_id": "om_2",
				"chat_id": "oc_9",
				"message_type": "post",
				"content": "{\"title\":\"Report\",\"content\":[[{\"tag\":\"text\",\"text\":\"line one\"}],[{\"tag\":\"text\",\"text\":\"line two\"}]]}"
			}
		}
	}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if event.Message.Text != "Report\nline one\nline two" {
		t.Fatalf("text = %q", event.Message.Text)
	}
}

func TestParseEventIgnoresOtherEvents(t *testing.T) {
	body := []byte(`{"header": {"event_type": "im.chat.updated_v1"}, "event": {}}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if event.Type != EventIgnored {
		t.Fatalf("type = %q", event.Type)
	}
}

func TestParseEventIgnoresUnsupportedMessageTypes(t *testing.T) {
	body := []byte(`{
		"header": {"event_type": "im.message.receive_v1"},
		"event": {"message": {"message_id": "om_3", "chat_id": "oc_9", "message_type": "sticker", "content": "{}"}}
	}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if event.Type != EventIgnored {
		t.Fatalf("type = %q", event.Type)
	}
}
