package feishu

import (
	"context"
	"fmt"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// CardAPI is the slice of the Feishu client the sink needs. Narrowed to an
// interface so the sequencing behavior is testable without the network.
type CardAPI interface {
	CreateCard(ctx context.Context, title string) (string, error)
	ReplyCard(ctx context.Context, messageID, cardID string) error
	UpdateCardElement(ctx context.Context, cardID, elementID, content string, seq int) error
	ReplyText(ctx context.Context, messageID, text string) error
}

// CardSink implements the ChatSurface port on top of streaming cards.
// Every call is bounded by callTimeout; a timed-out or rejected update is
// reported as false, never as a fatal error, so the fragment loop keeps
// moving and the final flush converges the card.
type CardSink struct {
	api         CardAPI
	logger      ports.Logger
	cardTitle   string
	callTimeout time.Duration
}

// NewCardSink builds a CardSink.
func NewCardSink(api CardAPI, log ports.Logger, callTimeout time.Duration) *CardSink {
	if callTimeout <= 0 {
		callTimeout = domain.DefaultSurfaceCallTimeout
	}
	return &CardSink{
		api:         api,
		logger:      log,
		cardTitle:   "AI Reply",
		callTimeout: callTimeout,
	}
}

// Open creates the placeholder card and attaches it as a reply. A failure
// here means the relay must not enter the streaming path.
func (s *CardSink) Open(ctx context.Context, replyTo string) (domain.RenderTarget, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	cardID, err := s.api.CreateCard(cctx, s.cardTitle)
	if err != nil {
		return domain.RenderTarget{}, fmt.Errorf("create card entity: %w", err)
	}

	rctx, rcancel := context.WithTimeout(ctx, s.callTimeout)
	defer rcancel()
	if err := s.api.ReplyCard(rctx, replyTo, cardID); err != nil {
		return domain.RenderTarget{}, fmt.Errorf("attach card reply: %w", err)
	}

	return domain.RenderTarget{
		CardID:    cardID,
		ElementID: markdownElementID,
		MessageID: replyTo,
	}, nil
}

// Update pushes the accumulated text at the given sequence number.
func (s *CardSink) Update(ctx context.Context, target domain.RenderTarget, fullText string, seq int) bool {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.api.UpdateCardElement(cctx, target.CardID, target.ElementID, fullText, seq); err != nil {
		s.logger.Warn("card update rejected", map[string]interface{}{
			"card_id": target.CardID,
			"seq":     seq,
			"error":   err.Error(),
		})
		return false
	}
	return true
}

// Finalize pushes the last known text. Same mechanics as Update, logged at
// error level because after this call nothing else will repair the card.
func (s *CardSink) Finalize(ctx context.Context, target domain.RenderTarget, fullText string, seq int) bool {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.api.UpdateCardElement(cctx, target.CardID, target.ElementID, fullText, seq); err != nil {
		s.logger.Error("card finalize failed", err, map[string]interface{}{
			"card_id": target.CardID,
			"seq":     seq,
		})
		return false
	}
	return true
}

// ReplyText sends a plain text reply, used for fallbacks and action reports.
func (s *CardSink) ReplyText(ctx context.Context, replyTo string, text string) error {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.api.ReplyText(cctx, replyTo, text)
}

var _ ports.ChatSurface = (*CardSink)(nil)
var _ CardAPI = (*Client)(nil)
