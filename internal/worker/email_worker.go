package worker

// email_worker.go processes QueueEmail jobs: sale receipts mailed to the
// client as a PDF attachment.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path"`
}

// Sender delivers one message with an optional PDF attachment.
type Sender interface {
	SendReport(to, subject, body, pdfPath string) error
}

type EmailWorker struct {
	mailer Sender
}

func NewEmailWorker(mailer Sender) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends the email. Malformed payloads are dropped without retry.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	if err := w.mailer.SendReport(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath); err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: receipt sent")
	return nil
}

// NewHandlers maps every job type to its processor.
func NewHandlers(mailer Sender) map[string]Handler {
	return map[string]Handler{
		JobEmail: NewEmailWorker(mailer).Process,
	}
}
