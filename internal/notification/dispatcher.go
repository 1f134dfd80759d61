package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crm_pipeline_backend/internal/email"
	"crm_pipeline_backend/internal/notification/inapp"
	"crm_pipeline_backend/internal/scheduler"
	"crm_pipeline_backend/internal/users"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	resourceTypeOpportunity = "opportunity"
	inProcessEmailTimeout   = 30 * time.Second
)

// Deal describes the opportunity a notification is about.
type Deal struct {
	OpportunityID uuid.UUID
	AccountID     uuid.UUID
	Title         string
	AccountName   string
	Value         float64
	Stage         string
	Outcome       string // "won" or "lost"
}

// ContactLookup resolves the email address of a user.
type ContactLookup interface {
	Contact(ctx context.Context, id uuid.UUID) (users.Contact, error)
}

// Dispatcher fans a deal notification out to the in-app inbox, the user's
// live SSE connections and email. It never returns an error; every failed
// channel is logged.
type Dispatcher struct {
	inApp    *inapp.Service
	queue    scheduler.DealEmailQueue
	sender   email.Sender
	contacts ContactLookup
	log      *logger.Logger

	wg sync.WaitGroup
}

func NewDispatcher(inApp *inapp.Service, log *logger.Logger) *Dispatcher {
	return &Dispatcher{inApp: inApp, log: log}
}

// SetEmailQueue routes deal emails through the task queue.
func (d *Dispatcher) SetEmailQueue(q scheduler.DealEmailQueue) {
	d.queue = q
}

// SetEmailSender enables in-process email delivery when no queue is set.
func (d *Dispatcher) SetEmailSender(sender email.Sender, contacts ContactLookup) {
	d.sender = sender
	d.contacts = contacts
}

// NotifyDeal delivers a deal_won or deal_closed notification to userID.
func (d *Dispatcher) NotifyDeal(ctx context.Context, userID uuid.UUID, kind string, deal Deal) {
	log := d.log.WithContext(ctx)
	title, content, category := RenderDeal(kind, deal)

	if d.inApp != nil {
		resourceID := deal.OpportunityID
		if _, err := d.inApp.Send(ctx, inapp.SendParams{
			UserID:       userID,
			Kind:         kind,
			Title:        title,
			Content:      content,
			ResourceID:   &resourceID,
			ResourceType: resourceTypeOpportunity,
			Category:     category,
		}); err != nil {
			log.NotificationFailed("in_app", kind, userID.String(), err)
		}
	}

	d.dispatchEmail(ctx, userID, kind, deal)
}

func (d *Dispatcher) dispatchEmail(ctx context.Context, userID uuid.UUID, kind string, deal Deal) {
	if d.queue != nil {
		err := d.queue.EnqueueDealEmail(ctx, scheduler.DealEmailPayload{
			UserID:        userID.String(),
			OpportunityID: deal.OpportunityID.String(),
			Kind:          kind,
			Outcome:       deal.Outcome,
			Title:         deal.Title,
			AccountName:   deal.AccountName,
			Value:         deal.Value,
		})
		if err != nil {
			d.log.WithContext(ctx).NotificationFailed("email_queue", kind, userID.String(), err)
		}
		return
	}

	if email.IsNoop(d.sender) || d.contacts == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), inProcessEmailTimeout)
		defer cancel()

		if err := d.sendNow(bg, userID, kind, deal); err != nil {
			d.log.WithContext(bg).NotificationFailed("email", kind, userID.String(), err)
		}
	}()
}

func (d *Dispatcher) sendNow(ctx context.Context, userID uuid.UUID, kind string, deal Deal) error {
	contact, err := d.contacts.Contact(ctx, userID)
	if err != nil {
		return err
	}
	if contact.Email == "" {
		return nil
	}
	return d.sender.SendDealEmail(ctx, contact.Email, email.DealEmail{
		Kind:        kind,
		Outcome:     deal.Outcome,
		Title:       deal.Title,
		AccountName: deal.AccountName,
		Value:       deal.Value,
	})
}

// Wait blocks until in-process email deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// RenderDeal returns the in-app title, content and category for a deal
// notification.
func RenderDeal(kind string, deal Deal) (title, content, category string) {
	value := email.FormatValue(deal.Value)

	switch kind {
	case email.KindDealWon:
		return fmt.Sprintf("Deal won: %s", deal.Title),
			fmt.Sprintf("%s signed, value %s", deal.AccountName, value),
			"success"
	case email.KindDealClosed:
		category = "success"
		if deal.Outcome != "won" {
			category = "warning"
		}
		return fmt.Sprintf("Deal %s: %s", deal.Outcome, deal.Title),
			fmt.Sprintf("%s, value %s", deal.AccountName, value),
			category
	default:
		return fmt.Sprintf("Deal update: %s", deal.Title),
			fmt.Sprintf("%s, value %s", deal.AccountName, value),
			"info"
	}
}
