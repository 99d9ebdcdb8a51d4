package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/mail"
)

// EmailSubject is the subject line of every OTP email.
const EmailSubject = "Your OTP for Verification"

// DeliveryHandler renders and mails send-otp jobs.
type DeliveryHandler struct {
	mailer   mail.Mailer
	renderer mail.Renderer
	log      *zap.Logger
}

// NewDeliveryHandler constructs a handler over mailer and renderer.
func NewDeliveryHandler(mailer mail.Mailer, renderer mail.Renderer) *DeliveryHandler {
	return &DeliveryHandler{
		mailer:   mailer,
		renderer: renderer,
		log:      logger.WithModule("otp"),
	}
}

// Handle processes one job payload. Errors that cannot succeed on retry wrap asynq.SkipRetry.
func (h *DeliveryHandler) Handle(ctx context.Context, payload []byte) error {
	var job DeliveryPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("otp: decode delivery payload: %v: %w", err, asynq.SkipRetry)
	}
	if job.Email == "" {
		return fmt.Errorf("otp: delivery payload has no email: %w", asynq.SkipRetry)
	}

	html, err := h.renderer.Render(job.Template)
	if err != nil {
		if errors.Is(err, mail.ErrTemplateNotFound) {
			return fmt.Errorf("otp: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("otp: render template: %w", err)
	}

	err = h.mailer.Send(ctx, mail.Message{
		To:      []string{job.Email},
		Subject: EmailSubject,
		HTML:    html,
	})
	if errors.Is(err, mail.ErrSMTPDisabled) {
		h.log.Warn("smtp disabled, otp email not sent", zap.String("template", job.Template.Name))
		return nil
	}
	if errors.Is(err, mail.ErrRejected) {
		return fmt.Errorf("otp: send email: %v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("otp: send email: %w", err)
	}

	h.log.Info("otp email sent", zap.String("template", job.Template.Name))
	return nil
}
