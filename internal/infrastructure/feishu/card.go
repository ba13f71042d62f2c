package feishu

// markdownElementID is the id of the single markdown element every streaming
// card carries; updates target it by id.
const markdownElementID = "elem_md"

// streamingCard is the Card JSON 2.0 template for an in-progress reply.
// streaming_mode lets the client render sequenced partial updates.
func streamingCard(title string) map[string]interface{} {
	return map[string]interface{}{
		"schema": "2.0",
		"header": map[string]interface{}{
			"title": map[string]interface{}{
				"content": title,
				"tag":     "plain_text",
			},
		},
		"body": map[string]interface{}{
			"elements": []interface{}{
				map[string]interface{}{
					"tag":        "markdown",
					"content":    "Thinking...",
					"element_id": markdownElementID,
					"text_size":  "normal",
					"text_align": "left",
				},
			},
		},
		"config": map[string]interface{}{
			"streaming_mode": true,
			"update_multi":   true,
		},
	}
}
