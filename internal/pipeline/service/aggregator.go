package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"crm_pipeline_backend/internal/events"
	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/platform/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyStats        = "pipeline-stats"
	cacheKeyGroupsAll    = "opportunities-by-stage:all"
	cacheKeyGroupsActive = "opportunities-by-stage:open"
)

// topicKeys maps an invalidation topic to the cache entries derived from it.
var topicKeys = map[string][]string{
	events.TopicOpportunities:        {cacheKeyGroupsAll, cacheKeyGroupsActive, cacheKeyStats},
	events.TopicOpportunitiesByStage: {cacheKeyGroupsAll, cacheKeyGroupsActive},
	events.TopicPipelineStats:        {cacheKeyStats},
	events.TopicAccounts:             {cacheKeyGroupsAll, cacheKeyGroupsActive},
}

// StageGroup is one column of the pipeline board.
type StageGroup struct {
	Stage         domain.Stage             `json:"stage"`
	Label         string                   `json:"label"`
	Opportunities []repository.Opportunity `json:"opportunities"`
}

// StageBreakdown is the per-stage part of Stats.
type StageBreakdown struct {
	Stage domain.Stage `json:"stage"`
	Label string       `json:"label"`
	Count int          `json:"count"`
	Value float64      `json:"value"`
}

// Stats summarises the whole pipeline.
type Stats struct {
	TotalOpportunities int              `json:"totalOpportunities"`
	TotalValue         float64          `json:"totalValue"`
	WeightedValue      float64          `json:"weightedValue"`
	AvgDealSize        float64          `json:"avgDealSize"`
	ByStage            []StageBreakdown `json:"byStage"`
}

// OpportunityLister is the read side of the record store.
type OpportunityLister interface {
	ListOpportunities(ctx context.Context, filter repository.OpportunityFilter) ([]repository.Opportunity, error)
}

// Aggregator computes grouped views and statistics and caches them until a
// matching invalidation arrives.
type Aggregator struct {
	store OpportunityLister
	cache Cache
	ttl   time.Duration
	log   *logger.Logger

	group singleflight.Group
	// generation advances on every invalidation; fills started under an
	// older generation are not written back.
	generation atomic.Uint64
}

// NewAggregator creates an aggregator. A nil cache disables caching.
func NewAggregator(store OpportunityLister, cache Cache, ttl time.Duration, log *logger.Logger) *Aggregator {
	return &Aggregator{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// Subscribe registers the aggregator as an observer of invalidation events.
func (a *Aggregator) Subscribe(bus events.Bus) {
	bus.Subscribe(events.TopicsInvalidated{}.EventName(), events.HandlerFunc(a.handleInvalidated))
}

func (a *Aggregator) handleInvalidated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.TopicsInvalidated)
	if !ok {
		return nil
	}
	return a.Invalidate(ctx, e.Topics...)
}

// Invalidate drops every cache entry derived from topics. Unknown topics are
// ignored.
func (a *Aggregator) Invalidate(ctx context.Context, topics ...string) error {
	a.generation.Add(1)
	if a.cache == nil {
		return nil
	}

	seen := make(map[string]struct{})
	keys := make([]string, 0, 3)
	for _, topic := range topics {
		for _, key := range topicKeys[topic] {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return a.cache.Delete(ctx, keys...)
}

// OpportunitiesByStage returns one group per stage in pipeline order, each
// with a non-nil slice. With includeLost false, lost opportunities and the
// lost group are left out.
func (a *Aggregator) OpportunitiesByStage(ctx context.Context, includeLost bool) ([]StageGroup, error) {
	key := cacheKeyGroupsActive
	if includeLost {
		key = cacheKeyGroupsAll
	}

	var groups []StageGroup
	err := a.cached(ctx, key, &groups, func(ctx context.Context) (interface{}, error) {
		items, err := a.store.ListOpportunities(ctx, repository.OpportunityFilter{ExcludeLost: !includeLost})
		if err != nil {
			return nil, wrapStep(err, opAggregate, "could not load pipeline")
		}
		return GroupByStage(items, includeLost), nil
	})
	return groups, err
}

// PipelineStats returns totals, weighted value and a per-stage breakdown over
// every non-deleted opportunity.
func (a *Aggregator) PipelineStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := a.cached(ctx, cacheKeyStats, &stats, func(ctx context.Context) (interface{}, error) {
		items, err := a.store.ListOpportunities(ctx, repository.OpportunityFilter{})
		if err != nil {
			return nil, wrapStep(err, opAggregate, "could not load pipeline statistics")
		}
		return ComputeStats(items), nil
	})
	return stats, err
}

// cached reads key into dest, or runs load once across concurrent callers,
// stores the result and decodes it into dest.
func (a *Aggregator) cached(ctx context.Context, key string, dest interface{}, load func(context.Context) (interface{}, error)) error {
	if a.cache != nil {
		hit, err := a.cache.Get(ctx, key, dest)
		if err != nil {
			a.log.WithContext(ctx).Warn("pipeline cache read failed", "key", key, "error", err)
		} else if hit {
			return nil
		}
	}

	gen := a.generation.Load()
	flightKey := fmt.Sprintf("%s@%d", key, gen)
	value, err, _ := a.group.Do(flightKey, func() (interface{}, error) {
		// Shared by every waiter on this flight, so one caller's cancellation
		// must not fail the others.
		flightCtx := context.WithoutCancel(ctx)
		result, loadErr := load(flightCtx)
		if loadErr != nil {
			return nil, loadErr
		}
		a.writeBack(flightCtx, key, gen, result)
		return result, nil
	})
	if err != nil {
		return err
	}

	switch d := dest.(type) {
	case *[]StageGroup:
		*d = value.([]StageGroup)
	case *Stats:
		*d = value.(Stats)
	default:
		return fmt.Errorf("unsupported cache destination %T", dest)
	}
	return nil
}

// writeBack writes a fill computed under gen. An invalidation can land between
// the generation check and the write, so the key is dropped again when the
// generation moved while Set ran.
func (a *Aggregator) writeBack(ctx context.Context, key string, gen uint64, result interface{}) {
	if a.cache == nil || a.generation.Load() != gen {
		return
	}
	log := a.log.WithContext(ctx)
	if err := a.cache.Set(ctx, key, result, a.ttl); err != nil {
		log.Warn("pipeline cache write failed", "key", key, "error", err)
		return
	}
	if a.generation.Load() != gen {
		if err := a.cache.Delete(ctx, key); err != nil {
			log.Warn("pipeline cache rollback failed", "key", key, "error", err)
		}
	}
}

// GroupByStage buckets items by stage in pipeline order. Items in unknown
// stages are dropped.
func GroupByStage(items []repository.Opportunity, includeLost bool) []StageGroup {
	stages := domain.Stages()
	groups := make([]StageGroup, 0, len(stages))
	index := make(map[domain.Stage]int, len(stages))
	for _, stage := range stages {
		if stage == domain.StageLost && !includeLost {
			continue
		}
		index[stage] = len(groups)
		groups = append(groups, StageGroup{
			Stage:         stage,
			Label:         stage.Label(),
			Opportunities: make([]repository.Opportunity, 0),
		})
	}

	for _, item := range items {
		i, ok := index[item.Stage]
		if !ok {
			continue
		}
		groups[i].Opportunities = append(groups[i].Opportunities, item)
	}
	return groups
}

// ComputeStats derives pipeline statistics. Weighted value uses each
// opportunity's stored probability. Average deal size is 0 for an empty
// pipeline.
func ComputeStats(items []repository.Opportunity) Stats {
	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	weighted := decimal.Zero

	stages := domain.Stages()
	perStageCount := make(map[domain.Stage]int, len(stages))
	perStageValue := make(map[domain.Stage]decimal.Decimal, len(stages))

	for _, item := range items {
		value := decimal.NewFromFloat(item.Value)
		total = total.Add(value)
		weighted = weighted.Add(value.Mul(decimal.NewFromInt(int64(item.Probability))).Div(hundred))
		perStageCount[item.Stage]++
		perStageValue[item.Stage] = perStageValue[item.Stage].Add(value)
	}

	avg := decimal.Zero
	if len(items) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(items))))
	}

	breakdown := make([]StageBreakdown, 0, len(stages))
	for _, stage := range stages {
		breakdown = append(breakdown, StageBreakdown{
			Stage: stage,
			Label: stage.Label(),
			Count: perStageCount[stage],
			Value: perStageValue[stage].Round(2).InexactFloat64(),
		})
	}

	return Stats{
		TotalOpportunities: len(items),
		TotalValue:         total.Round(2).InexactFloat64(),
		WeightedValue:      weighted.Round(2).InexactFloat64(),
		AvgDealSize:        avg.Round(2).InexactFloat64(),
		ByStage:            breakdown,
	}
}
