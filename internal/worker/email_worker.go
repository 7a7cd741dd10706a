package worker

// email_worker.go
// Processes mail jobs from QueueEmail: alert notifications and receipt copies
// requested by the back office.

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path"`
}

// EmailWorker delivers queued mails through the configured SMTP mailer.
type EmailWorker struct {
	mailer AlertMailer
}

func NewEmailWorker(mailer AlertMailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends one queued mail, attaching the PDF when a path is present.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return
	}
	if w.mailer == nil {
		log.Warn().Str("to", payload.ToEmail).Msg("email_worker: no mailer configured, dropping")
		return
	}

	if err := w.mailer.Send(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath); err != nil {
		log.Error().Err(err).Str("to", payload.ToEmail).Msg("email_worker: failed to send email")
		return
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: mail sent")
}
