// Package email delivers deal notification emails over SMTP.
package email

import (
	"context"

	"crm_pipeline_backend/platform/config"
)

// Deal kinds understood by the templates.
const (
	KindDealWon    = "deal_won"
	KindDealClosed = "deal_closed"
)

// DealEmail is the content of one deal notification email.
type DealEmail struct {
	Kind        string
	Outcome     string // "won" or "lost"
	Title       string
	AccountName string
	Value       float64
}

type Sender interface {
	SendDealEmail(ctx context.Context, toEmail string, deal DealEmail) error
}

// NoopSender drops every email.
type NoopSender struct{}

func (NoopSender) SendDealEmail(context.Context, string, DealEmail) error { return nil }

// NewSender returns an SMTP sender when SMTP is configured and a NoopSender
// otherwise.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetSMTPFromAddress(),
		cfg.GetSMTPFromName(),
	)
}

// IsNoop reports whether s never delivers anything.
func IsNoop(s Sender) bool {
	if s == nil {
		return true
	}
	_, ok := s.(NoopSender)
	return ok
}
