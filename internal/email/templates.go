package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
}

type dealEmailData struct {
	baseEmailData
	DealTitle      string
	AccountName    string
	Outcome        string
	ValueFormatted string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderDealEmail returns the subject and HTML body for deal.
func RenderDealEmail(deal DealEmail) (string, string, error) {
	data := dealEmailData{
		DealTitle:      deal.Title,
		AccountName:    deal.AccountName,
		Outcome:        deal.Outcome,
		ValueFormatted: FormatValue(deal.Value),
	}

	switch deal.Kind {
	case KindDealWon:
		subject := fmt.Sprintf(subjectDealWonFmt, deal.Title)
		data.Title, data.Heading = subject, "Deal won"
		body, err := renderEmailTemplate("deal_won.html", data)
		return subject, body, err
	case KindDealClosed:
		subject := fmt.Sprintf(subjectDealClosedFmt, deal.Outcome, deal.Title)
		data.Title, data.Heading = subject, "Deal "+deal.Outcome
		body, err := renderEmailTemplate("deal_closed.html", data)
		return subject, body, err
	default:
		return "", "", fmt.Errorf("unknown deal email kind %q", deal.Kind)
	}
}

// FormatValue renders a deal value with two decimals.
func FormatValue(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
