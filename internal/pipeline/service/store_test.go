package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeStore is an in-memory record store with per-method failure injection
// and a write log.
type fakeStore struct {
	mu            sync.Mutex
	accounts      map[uuid.UUID]repository.Account
	opportunities map[uuid.UUID]repository.Opportunity
	history       []repository.AppendHistoryParams
	clock         time.Time

	writes    []string
	listCalls int

	failUpdateStage   error
	failUpdateAccount error
	failList          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:      make(map[uuid.UUID]repository.Account),
		opportunities: make(map[uuid.UUID]repository.Opportunity),
		clock:         time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) addAccount(name string, status domain.AccountStatus) repository.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	a := repository.Account{ID: uuid.New(), Name: name, Status: status, CreatedAt: now, UpdatedAt: now}
	f.accounts[a.ID] = a
	return a
}

func (f *fakeStore) addOpportunity(account repository.Account, title string, stage domain.Stage, probability int, value float64) repository.Opportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	o := repository.Opportunity{
		ID:          uuid.New(),
		AccountID:   account.ID,
		AccountName: account.Name,
		Title:       title,
		Stage:       stage,
		Probability: probability,
		Value:       value,
		OwnerID:     uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.opportunities[o.ID] = o
	return o
}

func (f *fakeStore) opportunity(id uuid.UUID) repository.Opportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opportunities[id]
}

func (f *fakeStore) account(id uuid.UUID) repository.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id]
}

func (f *fakeStore) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeStore) CreateAccount(_ context.Context, p repository.CreateAccountParams) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	a := repository.Account{ID: uuid.New(), Name: p.Name, Status: p.Status, CreatedAt: now, UpdatedAt: now}
	f.accounts[a.ID] = a
	f.writes = append(f.writes, "account.insert")
	return a, nil
}

func (f *fakeStore) GetAccount(_ context.Context, id uuid.UUID) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.Account{}, apperr.NotFound("account not found")
	}
	return a, nil
}

func (f *fakeStore) UpdateAccountStatus(_ context.Context, id uuid.UUID, status domain.AccountStatus) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "account.status")
	if f.failUpdateAccount != nil {
		return repository.Account{}, f.failUpdateAccount
	}
	a, ok := f.accounts[id]
	if !ok {
		return repository.Account{}, apperr.NotFound("account not found")
	}
	a.Status = status
	a.UpdatedAt = f.tick()
	f.accounts[id] = a
	return a, nil
}

func (f *fakeStore) CreateOpportunity(_ context.Context, p repository.CreateOpportunityParams) (repository.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[p.AccountID]
	if !ok {
		return repository.Opportunity{}, apperr.NotFound("account not found")
	}
	now := f.tick()
	o := repository.Opportunity{
		ID: uuid.New(), AccountID: a.ID, AccountName: a.Name, Title: p.Title,
		Stage: domain.StageLead, Probability: 10, Value: p.Value, OwnerID: p.OwnerID,
		CreatedAt: now, UpdatedAt: now,
	}
	f.opportunities[o.ID] = o
	f.writes = append(f.writes, "opportunity.insert")
	return o, nil
}

func (f *fakeStore) GetOpportunity(_ context.Context, id uuid.UUID) (repository.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.opportunities[id]
	if !ok {
		return repository.Opportunity{}, apperr.NotFound("opportunity not found")
	}
	return o, nil
}

func (f *fakeStore) UpdateOpportunityStage(_ context.Context, id uuid.UUID, stage domain.Stage, probability int) (repository.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "opportunity.stage")
	if f.failUpdateStage != nil {
		return repository.Opportunity{}, f.failUpdateStage
	}
	o, ok := f.opportunities[id]
	if !ok {
		return repository.Opportunity{}, apperr.NotFound("opportunity not found")
	}
	o.Stage = stage
	o.Probability = probability
	o.UpdatedAt = f.tick()
	o.AccountName = f.accounts[o.AccountID].Name
	f.opportunities[id] = o
	return o, nil
}

func (f *fakeStore) UpdateOpportunityProbability(_ context.Context, id uuid.UUID, probability int) (repository.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "opportunity.probability")
	o, ok := f.opportunities[id]
	if !ok {
		return repository.Opportunity{}, apperr.NotFound("opportunity not found")
	}
	o.Probability = probability
	o.UpdatedAt = f.tick()
	f.opportunities[id] = o
	return o, nil
}

func (f *fakeStore) ListOpportunities(_ context.Context, filter repository.OpportunityFilter) ([]repository.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList != nil {
		return nil, f.failList
	}
	items := make([]repository.Opportunity, 0, len(f.opportunities))
	for _, o := range f.opportunities {
		if filter.ExcludeLost && o.Stage == domain.StageLost {
			continue
		}
		if filter.AccountID != nil && o.AccountID != *filter.AccountID {
			continue
		}
		items = append(items, o)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) AppendStageHistory(_ context.Context, p repository.AppendHistoryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, p)
	return nil
}

func (f *fakeStore) ListStageHistory(_ context.Context, opportunityID uuid.UUID) ([]repository.StageHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.StageHistoryEntry, 0)
	for i := len(f.history) - 1; i >= 0; i-- {
		h := f.history[i]
		if h.OpportunityID != opportunityID {
			continue
		}
		out = append(out, repository.StageHistoryEntry{
			ID: uuid.New(), OpportunityID: h.OpportunityID, FromStage: h.FromStage, ToStage: h.ToStage,
			Probability: h.Probability, Source: h.Source, ChangedBy: h.ChangedBy, ChangedAt: h.ChangedAt,
		})
	}
	return out, nil
}

type sentNotification struct {
	userID  uuid.UUID
	kind    NotificationKind
	payload DealNotification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind NotificationKind, payload DealNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID: userID, kind: kind, payload: payload})
}

type recordingFeedback struct {
	acks   []string
	alerts []string
}

func (f *recordingFeedback) Acknowledge(_ context.Context, _ uuid.UUID, message string) {
	f.acks = append(f.acks, message)
}

func (f *recordingFeedback) Alert(_ context.Context, _ uuid.UUID, message string) {
	f.alerts = append(f.alerts, message)
}
