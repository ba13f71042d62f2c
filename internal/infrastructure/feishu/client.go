// Package feishu adapts the Feishu open platform API: message sending,
// streaming card updates, and webhook event decoding.
package feishu

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

const defaultBaseURL = "https://open.feishu.cn"

// Client calls the Feishu REST API with a cached tenant access token.
type Client struct {
	appID             string
	appSecret         string
	verificationToken string
	encryptKey        string
	baseURL           string
	httpClient        *http.Client
	logger            ports.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient builds a Client from the bot settings.
func NewClient(settings domain.FeishuSettings, log ports.Logger) *Client {
	base := settings.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		appID:             settings.AppID,
		appSecret:         settings.AppSecret,
		verificationToken: settings.VerificationToken,
		encryptKey:        settings.EncryptKey,
		baseURL:           base,
		httpClient:        &http.Client{Timeout: domain.DefaultSurfaceCallTimeout},
		logger:            log,
	}
}

// VerifySignature checks a webhook request signature. An empty encrypt key
// disables verification, matching the platform's behavior when encryption is
// not configured.
func (c *Client) VerifySignature(timestamp, nonce, body, signature string) bool {
	if c.encryptKey == "" {
		return true
	}
	sum := sha256.Sum256([]byte(timestamp + nonce + c.encryptKey + body))
	return hex.EncodeToString(sum[:]) == signature
}

// tenantAccessToken returns a valid token, refreshing it 5 minutes before
// expiry.
func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/auth/v3/tenant_access_token/internal", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch tenant access token: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode tenant access token: %w", err)
	}
	if decoded.Code != 0 || decoded.TenantAccessToken == "" {
		return "", fmt.Errorf("tenant access token refused: code=%d msg=%s", decoded.Code, decoded.Msg)
	}

	c.token = decoded.TenantAccessToken
	expire := decoded.Expire
	if expire <= 0 {
		expire = 7200
	}
	c.tokenExpiry = time.Now().Add(time.Duration(expire)*time.Second - 5*time.Minute)
	return c.token, nil
}

// apiResponse is the common envelope of Feishu API replies.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, method, path, query string, payload interface{}) (apiResponse, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return apiResponse{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, err
	}
	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return apiResponse{}, fmt.Errorf("decode %s response: %w", path, err)
	}
	if decoded.Code != 0 {
		return decoded, fmt.Errorf("%s %s: code=%d msg=%s", method, path, decoded.Code, decoded.Msg)
	}
	return decoded, nil
}

// SendMessage sends a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, http.MethodPost, "/open-apis/im/v1/messages", "receive_id_type=chat_id",
		map[string]string{
			"receive_id": chatID,
			"msg_type":   "text",
			"content":    string(content),
		})
	return err
}

// ReplyText replies to a message with plain text.
func (c *Client) ReplyText(ctx context.Context, messageID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, http.MethodPost, "/open-apis/im/v1/messages/"+messageID+"/reply", "",
		map[string]string{
			"msg_type": "text",
			"content":  string(content),
		})
	return err
}

// ReplyCard replies to a message with a card entity reference.
func (c *Client) ReplyCard(ctx context.Context, messageID, cardID string) error {
	content, err := json.Marshal(map[string]interface{}{
		"type": "card",
		"data": map[string]string{"card_id": cardID},
	})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, http.MethodPost, "/open-apis/im/v1/messages/"+messageID+"/reply", "",
		map[string]string{
			"msg_type": "interactive",
			"content":  string(content),
		})
	return err
}

// UpdateMessage patches the content of an already sent text message.
// This is the legacy editing path, kept for plain-text fallbacks.
func (c *Client) UpdateMessage(ctx context.Context, messageID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, http.MethodPatch, "/open-apis/im/v1/messages/"+messageID, "",
		map[string]string{
			"msg_type": "text",
			"content":  string(content),
		})
	return err
}

// CreateCard creates a streaming-mode card entity and returns its id.
func (c *Client) CreateCard(ctx context.Context, title string) (string, error) {
	cardJSON, err := json.Marshal(streamingCard(title))
	if err != nil {
		return "", err
	}
	resp, err := c.call(ctx, http.MethodPost, "/open-apis/cardkit/v1/cards", "",
		map[string]string{
			"type": "card_json",
			"data": string(cardJSON),
		})
	if err != nil {
		return "", err
	}
	var data struct {
		CardID string `json:"card_id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("decode card id: %w", err)
	}
	if data.CardID == "" {
		return "", fmt.Errorf("card entity created without id")
	}
	return data.CardID, nil
}

// UpdateCardElement replaces a card element's content at the given sequence
// number. The platform rejects sequences not greater than the last accepted
// one for the card.
func (c *Client) UpdateCardElement(ctx context.Context, cardID, elementID, content string, seq int) error {
	_, err := c.call(ctx, http.MethodPut,
		"/open-apis/cardkit/v1/cards/"+cardID+"/elements/"+elementID+"/content", "",
		map[string]interface{}{
			"uuid":     uuid.NewString(),
			"sequence": seq,
			"content":  content,
		})
	return err
}
