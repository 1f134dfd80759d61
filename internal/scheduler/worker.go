package scheduler

import (
	"context"
	"fmt"

	"crm_pipeline_backend/internal/email"
	"crm_pipeline_backend/internal/users"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ContactLookup resolves the email address of a user.
type ContactLookup interface {
	Contact(ctx context.Context, id uuid.UUID) (users.Contact, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	contacts ContactLookup
	sender   email.Sender
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, contacts ContactLookup, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		Logger: newAsynqLogger(log),
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		contacts: contacts,
		sender:   sender,
		log:      log,
	}

	mux.HandleFunc(TaskDealEmail, w.handleDealEmail)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleDealEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDealEmailPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", payload.UserID, asynq.SkipRetry)
	}

	contact, err := w.contacts.Contact(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.NotificationFailed("email", payload.Kind, payload.UserID, err)
			return nil
		}
		return err
	}
	if contact.Email == "" {
		return nil
	}

	if err := w.sender.SendDealEmail(ctx, contact.Email, email.DealEmail{
		Kind:        payload.Kind,
		Outcome:     payload.Outcome,
		Title:       payload.Title,
		AccountName: payload.AccountName,
		Value:       payload.Value,
	}); err != nil {
		w.log.NotificationFailed("email", payload.Kind, payload.UserID, err)
		return err
	}

	w.log.Info("deal email sent", "kind", payload.Kind, "opportunityId", payload.OpportunityID)
	return nil
}

// asynqLogger routes asynq's internal logging through the application logger.
type asynqLogger struct {
	log *logger.Logger
}

func newAsynqLogger(log *logger.Logger) asynq.Logger {
	return asynqLogger{log: log}
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
