package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store    *fakeStore
	bus      *events.InMemoryBus
	svc      *Service
	agg      *Aggregator
	notifier *recordingNotifier
	feedback *recordingFeedback

	mu          sync.Mutex
	invalidated [][]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.New("development")
	h := &harness{
		store:    newFakeStore(),
		bus:      events.NewInMemoryBus(log),
		notifier: &recordingNotifier{},
		feedback: &recordingFeedback{},
	}
	h.svc = New(h.store, log)
	h.svc.SetEventBus(h.bus)
	h.svc.SetNotifier(h.notifier)
	h.svc.SetFeedback(h.feedback)
	h.svc.RegisterHandlers(h.bus)

	h.agg = NewAggregator(h.store, NewMemoryCache(), time.Minute, log)
	h.agg.Subscribe(h.bus)

	h.bus.Subscribe(events.TopicsInvalidated{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.invalidated = append(h.invalidated, e.(events.TopicsInvalidated).Topics)
		return nil
	}))
	return h
}

func (h *harness) invalidations() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]string(nil), h.invalidated...)
}

func actor() *uuid.UUID {
	id := uuid.New()
	return &id
}

func TestTransitionStageDerivesProbabilityForEveryStage(t *testing.T) {
	h := newHarness(t)
	account := h.store.addAccount("Acme", domain.AccountProspect)

	for _, stage := range domain.Stages() {
		opp := h.store.addOpportunity(account, "Website", domain.StageNegotiation, 37, 1000)

		result, err := h.svc.TransitionStage(context.Background(), opp.ID, string(stage), nil)
		require.NoError(t, err, "stage %s", stage)

		want, _ := domain.ProbabilityFor(stage)
		assert.Equal(t, stage, result.Opportunity.Stage)
		assert.Equal(t, want, result.Opportunity.Probability, "stage %s", stage)
		assert.Equal(t, want, h.store.opportunity(opp.ID).Probability)
	}
}

func TestTransitionStageToCurrentStageStillWrites(t *testing.T) {
	h := newHarness(t)
	account := h.store.addAccount("Acme", domain.AccountProspect)
	opp := h.store.addOpportunity(account, "Website", domain.StageQuoteSent, 40, 1000)

	result, err := h.svc.TransitionStage(context.Background(), opp.ID, "quote_sent", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StageQuoteSent, result.Opportunity.Stage)
	assert.Equal(t, 40, result.Opportunity.Probability)
	assert.True(t, result.Opportunity.UpdatedAt.After(opp.UpdatedAt), "expected updatedAt to advance")
	assert.Equal(t, []string{"opportunity.stage"}, h.store.writeLog())
	assert.NotEmpty(t, h.invalidations(), "expected observers to fire on a same-stage write")
}

func TestTransitionStageRejectsUnknownStageBeforeWriting(t *testing.T) {
	h := newHarness(t)
	account := h.store.addAccount("Acme", domain.AccountProspect)
	opp := h.store.addOpportunity(account, "Website", domain.StageLead, 10, 1000)

	_, err := h.svc.TransitionStage(context.Background(), opp.ID, "won", actor())

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, h.store.writeLog())
	assert.Empty(t, h.invalidations())
	assert.Len(t, h.feedback.alerts, 1)
}

func TestTransitionStageAcknowledgesAndInvalidates(t *testing.T) {
	h := newHarness(t)
	account := h.store.addAccount("Acme", domain.AccountProspect)
	opp := h.store.addOpportunity(account, "Website", domain.StageLead, 10, 1000)

	result, err := h.svc.TransitionStage(context.Background(), opp.ID, "quote_requested", actor())
	require.NoError(t, err)

	assert.Equal(t, "Website (Acme) moved to Quote Requested", result.Message)
	assert.Equal(t, []string{result.Message}, h.feedback.acks)
	require.Len(t, h.invalidations(), 1)
	assert.ElementsMatch(t,
		[]string{events.TopicOpportunities, events.TopicOpportunitiesByStage, events.TopicPipelineStats},
		h.invalidations()[0])
	assert.Empty(t, h.notifier.sent, "intermediate stages must not notify")
}

func TestTransitionStageNotifiesOwnerOnClose(t *testing.T) {
	cases := []struct {
		stage   domain.Stage
		outcome DealOutcome
	}{
		{domain.StageLive, OutcomeWon},
		{domain.StageLost, OutcomeLost},
	}

	for _, tc := range cases {
		t.Run(string(tc.stage), func(t *testing.T) {
			h := newHarness(t)
			account := h.store.addAccount("Acme", domain.AccountCustomer)
			opp := h.store.addOpportunity(account, "Website", domain.StageReview, 98, 7500)

			_, err := h.svc.TransitionStage(context.Background(), opp.ID, string(tc.stage), nil)
			require.NoError(t, err)

			require.Len(t, h.notifier.sent, 1)
			sent := h.notifier.sent[0]
			assert.Equal(t, opp.OwnerID, sent.userID)
			assert.Equal(t, NotificationDealClosed, sent.kind)
			assert.Equal(t, tc.outcome, sent.payload.Outcome)
			assert.Equal(t, 7500.0, sent.payload.Value)
			assert.Equal(t, "Acme", sent.payload.AccountName)
		})
	}
}

func TestTransitionStagePropagatesStoreErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"not found", apperr.NotFound("opportunity not found"), apperr.KindNotFound},
		{"conflict", apperr.WriteConflict("constraint violation", errors.New("23514")), apperr.KindWriteConflict},
		{"transport", apperr.Transport("database unavailable", errors.New("timeout")), apperr.KindTransport},
		{"untyped", errors.New("boom"), apperr.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			account := h.store.addAccount("Acme", domain.AccountProspect)
			opp := h.store.addOpportunity(account, "Website", domain.StageLead, 10, 1000)
			h.store.failUpdateStage = tc.err

			_, err := h.svc.TransitionStage(context.Background(), opp.ID, "live", actor())

			require.Error(t, err)
			assert.Equal(t, tc.want, apperr.GetKind(err))
			assert.ErrorIs(t, err, tc.err)
			assert.Contains(t, apperr.Message(err, ""), "could not move opportunity to Live")
			assert.Empty(t, h.notifier.sent)
			assert.Empty(t, h.invalidations())
			assert.Len(t, h.feedback.alerts, 1)
			assert.Equal(t, []string{"opportunity.stage"}, h.store.writeLog(), "no retry expected")
		})
	}
}

func TestTransitionStageRecordsHistory(t *testing.T) {
	h := newHarness(t)
	account := h.store.addAccount("Acme", domain.AccountProspect)
	opp := h.store.addOpportunity(account, "Website", domain.StageLead, 10, 1000)
	by := actor()

	_, err := h.svc.TransitionStage(context.Background(), opp.ID, "quote_sent", by)
	require.NoError(t, err)
	h.bus.Wait()

	history, err := h.svc.StageHistory(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StageQuoteSent, history[0].ToStage)
	assert.Equal(t, 40, history[0].Probability)
	assert.Nil(t, history[0].FromStage)
	assert.Equal(t, by, history[0].ChangedBy)
	assert.Equal(t, "transition", history[0].Source)
}

func TestUpdateProbabilityLeavesStage(t *testing.T) {
	h := newHarness(t)
	account := h.store.addAccount("Acme", domain.AccountProspect)
	opp := h.store.addOpportunity(account, "Website", domain.StageNegotiation, 60, 1000)

	updated, err := h.svc.UpdateProbability(context.Background(), opp.ID, 75)
	require.NoError(t, err)
	assert.Equal(t, domain.StageNegotiation, updated.Stage)
	assert.Equal(t, 75, updated.Probability)

	_, err = h.svc.UpdateProbability(context.Background(), opp.ID, 101)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
