package ai

import (
	"encoding/json"
	"strings"
)

// streamEvent is one line of the CLI's stream-json output. Only the fields
// the decoder consumes are declared.
type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Result string `json:"result"`
}

// decoder turns stream-json lines into incremental text fragments. It tracks
// the text emitted so far because "assistant" events carry full snapshots
// that overlap with earlier deltas.
type decoder struct {
	full string
}

// Decode processes one line and returns the new fragments it contributes.
// Lines that are not JSON are passed through verbatim.
func (d *decoder) Decode(line []byte) []string {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}

	var event streamEvent
	if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
		d.full += trimmed
		return []string{trimmed}
	}

	switch event.Type {
	case "assistant":
		var frags []string
		for _, block := range event.Message.Content {
			if block.Type != "text" || block.Text == "" {
				continue
			}
			if strings.HasPrefix(block.Text, d.full) {
				if delta := block.Text[len(d.full):]; delta != "" {
					frags = append(frags, delta)
					d.full = block.Text
				}
			} else {
				frags = append(frags, block.Text)
				d.full = block.Text
			}
		}
		return frags
	case "content_block_delta":
		if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			d.full += event.Delta.Text
			return []string{event.Delta.Text}
		}
	case "result":
		// Terminal summary; only useful when no streaming text arrived.
		if event.Result != "" && d.full == "" {
			d.full = event.Result
			return []string{event.Result}
		}
	}
	return nil
}
