// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/metrics"
	"github.com/tlogandesigns/open-pair/internal/models"
)

// Note: this package depends only on models. The DataProvider and
// AvailabilityChecker interfaces let the directory, store, and calendar
// layers plug in without circular imports.

// DataProvider supplies the reference data and per-agent aggregates the
// engine reads. Implementations must return point-in-time consistent
// aggregates; the engine never mutates what it is handed.
type DataProvider interface {
	// GetOpenHouse returns the open house, or ErrNotFound.
	GetOpenHouse(ctx context.Context, id string) (*models.OpenHouse, error)

	// GetListing returns the listing, or ErrNotFound.
	GetListing(ctx context.Context, id string) (*models.Listing, error)

	// ListActiveAgents returns every agent eligible for consideration.
	ListActiveAgents(ctx context.Context) ([]models.Agent, error)

	// GetAgent returns one agent regardless of active flag, or ErrNotFound.
	// Training reads inactive agents' records too.
	GetAgent(ctx context.Context, id string) (*models.Agent, error)

	// GetAggregate returns the agent's aggregate stats, or (nil, nil) when
	// the agent has never hosted.
	GetAggregate(ctx context.Context, agentID string) (*models.AggregateStats, error)

	// ListRecords returns every hosting record in chronological order, for
	// training.
	ListRecords(ctx context.Context) ([]models.HostingRecord, error)
}

// AvailabilityChecker answers whether an agent can take a time slot.
type AvailabilityChecker interface {
	Check(ctx context.Context, agentID string, start, end time.Time) (available bool, reason string, err error)
}

// Reranker adjusts an ordered recommendation list after scoring, for
// concerns like tier diversity that are not per-candidate.
type Reranker interface {
	Name() string
	Rerank(items []Recommendation, k int) []Recommendation
}

// Request asks for a ranked host list for one open house.
type Request struct {
	// OpenHouseID references the event to staff.
	OpenHouseID string `json:"open_house_id" validate:"required"`

	// TopN overrides the configured list length when positive.
	TopN int `json:"top_n,omitempty" validate:"omitempty,min=1,max=50"`
}

// Engine coordinates feature extraction, scoring, fairness adjustment, and
// ranking. It is safe for concurrent use: configuration is immutable, the
// model swaps atomically, and all mutable state is behind its own lock.
type Engine struct {
	config    *Config
	logger    zerolog.Logger
	extractor *Extractor
	scorer    *Scorer
	adjuster  *Adjuster

	rerankers []Reranker
	rrMu      sync.RWMutex

	provider     DataProvider
	availability AvailabilityChecker

	cache   map[string]cacheEntry
	cacheMu sync.RWMutex

	// trainMu serializes retraining runs; see retrain.go.
	trainMu   sync.Mutex
	lastTrain RetrainStatus
	statusMu  sync.RWMutex
}

type cacheEntry struct {
	list      *RankedList
	expiresAt time.Time
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config:    cfg,
		logger:    logger.With().Str("component", "recommend").Logger(),
		extractor: NewExtractor(cfg.RecencyHalfLifeDays),
		scorer:    NewScorer(cfg.ColdStartThreshold),
		adjuster:  NewAdjuster(cfg),
		cache:     make(map[string]cacheEntry),
	}, nil
}

// SetDataProvider sets the reference-data source.
func (e *Engine) SetDataProvider(dp DataProvider) {
	e.provider = dp
}

// SetAvailabilityChecker sets the schedule source. Without one, every agent
// is treated as available.
func (e *Engine) SetAvailabilityChecker(ac AvailabilityChecker) {
	e.availability = ac
}

// Scorer exposes the engine's scorer for model persistence and inspection.
func (e *Engine) Scorer() *Scorer {
	return e.scorer
}

// RegisterReranker appends a reranker to the post-processing pipeline.
func (e *Engine) RegisterReranker(rr Reranker) {
	e.rrMu.Lock()
	defer e.rrMu.Unlock()
	e.rerankers = append(e.rerankers, rr)
	e.logger.Info().Str("reranker", rr.Name()).Msg("Registered reranker")
}

// Recommend produces the ranked host list for an open house.
//
// An installation with no active agents yields an empty list; a request where
// candidates existed but every one was filtered out returns
// ErrNoEligibleAgents so callers can distinguish "nothing configured" from
// "nobody can take this slot".
func (e *Engine) Recommend(ctx context.Context, req Request) (*RankedList, error) {
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	}()

	if req.OpenHouseID == "" {
		metrics.RecommendRequests.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: open_house_id is required", ErrInvalidInput)
	}
	topN := req.TopN
	if topN <= 0 {
		topN = e.config.TopN
	}

	if list := e.checkCache(req.OpenHouseID, topN); list != nil {
		metrics.RecommendRequests.WithLabelValues("cache_hit").Inc()
		return list, nil
	}

	openHouse, err := e.provider.GetOpenHouse(ctx, req.OpenHouseID)
	if err != nil {
		metrics.RecommendRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open house %s: %w", req.OpenHouseID, err)
	}
	listing, err := e.provider.GetListing(ctx, openHouse.ListingID)
	if err != nil {
		metrics.RecommendRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("listing %s: %w", openHouse.ListingID, err)
	}

	agents, err := e.provider.ListActiveAgents(ctx)
	if err != nil {
		metrics.RecommendRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list agents: %w", err)
	}
	if len(agents) == 0 {
		// Nothing configured yet. A valid empty list, not an error.
		e.logger.Debug().Str("open_house_id", req.OpenHouseID).Msg("No active agents")
		metrics.RecommendRequests.WithLabelValues("empty").Inc()
		return e.emptyList(openHouse), nil
	}

	scored := e.scoreCandidates(ctx, agents, openHouse, listing)
	if len(scored) == 0 {
		metrics.RecommendRequests.WithLabelValues("no_eligible").Inc()
		return nil, fmt.Errorf("open house %s: %w", req.OpenHouseID, ErrNoEligibleAgents)
	}

	sortRecommendations(scored)
	scored = e.applyRerankers(scored, topN)
	if len(scored) > topN {
		scored = scored[:topN]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}

	list := &RankedList{
		OpenHouseID:     openHouse.ID,
		ListingID:       listing.ID,
		Items:           scored,
		TotalCandidates: len(agents),
		ModelVersion:    e.scorer.ActiveVersion(),
		GeneratedAt:     time.Now().UTC(),
	}
	e.storeCache(req.OpenHouseID, topN, list)

	metrics.RecommendRequests.WithLabelValues("ok").Inc()
	e.logger.Debug().
		Str("open_house_id", req.OpenHouseID).
		Int("candidates", list.TotalCandidates).
		Int("returned", len(list.Items)).
		Int("model_version", list.ModelVersion).
		Msg("Recommendation complete")
	return list, nil
}

// scoreCandidates filters, scores, and fairness-adjusts the candidate set,
// stopping once MaxCandidates survivors have been scored. The model snapshot
// is pinned once so every candidate in the batch scores against the same
// version.
func (e *Engine) scoreCandidates(ctx context.Context, agents []models.Agent, oh *models.OpenHouse, listing *models.Listing) []Recommendation {
	model := e.scorer.Active()
	now := time.Now().UTC()

	out := make([]Recommendation, 0, len(agents))
	for i := range agents {
		if len(out) >= e.config.MaxCandidates {
			break
		}
		agent := &agents[i]
		if !agent.Active {
			metrics.CandidatesFiltered.WithLabelValues("inactive").Inc()
			continue
		}

		if e.availability != nil {
			available, reason, err := e.availability.Check(ctx, agent.ID, oh.StartTime, oh.EndTime)
			if err != nil {
				metrics.CandidatesFiltered.WithLabelValues("availability_error").Inc()
				e.logger.Warn().Err(err).Str("agent_id", agent.ID).Msg("Availability check failed, skipping candidate")
				continue
			}
			if !available {
				metrics.CandidatesFiltered.WithLabelValues("unavailable").Inc()
				e.logger.Debug().
					Str("agent_id", agent.ID).
					Str("reason", reason).
					Msg("Candidate unavailable")
				continue
			}
		}

		stats, err := e.provider.GetAggregate(ctx, agent.ID)
		if err != nil {
			metrics.CandidatesFiltered.WithLabelValues("score_failed").Inc()
			e.logger.Warn().Err(err).Str("agent_id", agent.ID).Msg("Aggregate load failed, skipping candidate")
			continue
		}

		ps := effectivePeriodStats(stats, now, e.config.PeriodDays)
		fv := e.extractor.Extract(agent, stats, listing, now)
		fv.PeriodHostingCount = float64(ps.HostedThisPeriod)

		res := e.scorer.Score(model, fv, ps.HostedTotal)
		fairness, exp := e.adjuster.Adjust(agent.Tier(), res.Raw, ps, now)

		out = append(out, Recommendation{
			AgentID:       agent.ID,
			AgentName:     agent.Name,
			Tier:          agent.Tier(),
			RawScore:      res.Raw,
			FairnessScore: fairness,
			Path:          res.Path,
			KeyFactors:    keyFactors(fv, exp),
			Fairness:      exp,
		})
	}
	return out
}

// effectivePeriodStats projects stored aggregates onto the current rotation
// period: a period that has rolled over since the last write contributes a
// zero period count.
func effectivePeriodStats(stats *models.AggregateStats, now time.Time, periodDays int) PeriodStats {
	if stats == nil {
		return PeriodStats{}
	}
	ps := PeriodStats{
		HostedThisPeriod: stats.HostedThisPeriod,
		HostedTotal:      stats.HostedTotal,
		LastHostedAt:     stats.LastHostedAt,
	}
	if now.Sub(stats.PeriodStart) >= time.Duration(periodDays)*24*time.Hour {
		ps.HostedThisPeriod = 0
	}
	return ps
}

// sortRecommendations orders by fairness score descending, breaking ties with
// raw score and finally agent ID so equal inputs always produce equal output.
func sortRecommendations(items []Recommendation) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].FairnessScore != items[j].FairnessScore {
			return items[i].FairnessScore > items[j].FairnessScore
		}
		if items[i].RawScore != items[j].RawScore {
			return items[i].RawScore > items[j].RawScore
		}
		return items[i].AgentID < items[j].AgentID
	})
}

func (e *Engine) applyRerankers(items []Recommendation, k int) []Recommendation {
	e.rrMu.RLock()
	rerankers := e.rerankers
	e.rrMu.RUnlock()

	for _, rr := range rerankers {
		items = rr.Rerank(items, k)
	}
	return items
}

func (e *Engine) emptyList(oh *models.OpenHouse) *RankedList {
	return &RankedList{
		OpenHouseID:  oh.ID,
		ListingID:    oh.ListingID,
		Items:        []Recommendation{},
		ModelVersion: e.scorer.ActiveVersion(),
		GeneratedAt:  time.Now().UTC(),
	}
}

// keyFactors names the strongest positive signals behind a recommendation,
// fairness terms included, most influential first.
func keyFactors(fv FeatureVector, exp FairnessExplanation) []string {
	type factor struct {
		name   string
		weight float64
	}
	factors := []factor{
		{"strong lead conversion", fv.ConversionRate * heuristicConversionW},
		{"high offer success rate", fv.SuccessRate * heuristicSuccessW},
		{"excellent visitor feedback", (fv.AvgFeedback - 3.0) * heuristicFeedbackW},
		{"knows the area well", fv.AreaMatch * heuristicAreaMatchW},
		{"experienced in this price range", fv.PriceAlignment * heuristicPriceAlignW},
		{"due for rotation", exp.DeficitBonus + exp.RecencyBonus},
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].weight > factors[j].weight })

	out := make([]string, 0, 3)
	for _, f := range factors {
		if f.weight <= 0.02 {
			break
		}
		out = append(out, f.name)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// cache

func (e *Engine) cacheKey(openHouseID string, topN int) string {
	return fmt.Sprintf("%s|%d|%d", openHouseID, topN, e.scorer.ActiveVersion())
}

func (e *Engine) checkCache(openHouseID string, topN int) *RankedList {
	if e.config.CacheTTL <= 0 {
		return nil
	}
	key := e.cacheKey(openHouseID, topN)
	e.cacheMu.RLock()
	entry, ok := e.cache[key]
	e.cacheMu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.list
}

func (e *Engine) storeCache(openHouseID string, topN int, list *RankedList) {
	if e.config.CacheTTL <= 0 {
		return
	}
	e.cacheMu.Lock()
	e.cache[e.cacheKey(openHouseID, topN)] = cacheEntry{
		list:      list,
		expiresAt: time.Now().Add(e.config.CacheTTL),
	}
	e.cacheMu.Unlock()
}

// InvalidateCache drops every cached list. The feedback ingestor calls this
// after each aggregate update so stale rankings are never served past an
// outcome.
func (e *Engine) InvalidateCache() {
	e.cacheMu.Lock()
	e.cache = make(map[string]cacheEntry)
	e.cacheMu.Unlock()
}

// FairnessReport summarizes rotation state across all active agents, the
// most rotation-deserving first.
func (e *Engine) FairnessReport(ctx context.Context) (*FairnessReport, error) {
	agents, err := e.provider.ListActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	now := time.Now().UTC()
	report := &FairnessReport{
		GeneratedAt:      now,
		Agents:           make([]AgentFairness, 0, len(agents)),
		ActiveAgents:     len(agents),
		TierDistribution: make(map[string]int),
	}

	for i := range agents {
		agent := &agents[i]
		report.TierDistribution[agent.Tier().String()]++

		stats, err := e.provider.GetAggregate(ctx, agent.ID)
		if err != nil {
			return nil, fmt.Errorf("aggregate for %s: %w", agent.ID, err)
		}

		row := e.agentFairness(agent, stats, now)
		switch row.Status {
		case "below_minimum":
			report.BelowMinimum++
		case "above_maximum":
			report.AboveMaximum++
		}
		report.Agents = append(report.Agents, row)
	}

	sort.SliceStable(report.Agents, func(i, j int) bool {
		if report.Agents[i].RotationScore != report.Agents[j].RotationScore {
			return report.Agents[i].RotationScore > report.Agents[j].RotationScore
		}
		return report.Agents[i].AgentID < report.Agents[j].AgentID
	})
	return report, nil
}

// FairnessFor reports rotation state for one agent, active or not. The
// identifier must resolve; unknown agents surface the provider's not-found
// error unchanged.
func (e *Engine) FairnessFor(ctx context.Context, agentID string) (*AgentFairness, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", ErrInvalidInput)
	}
	agent, err := e.provider.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, err)
	}
	stats, err := e.provider.GetAggregate(ctx, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("aggregate for %s: %w", agent.ID, err)
	}

	row := e.agentFairness(agent, stats, time.Now().UTC())
	return &row, nil
}

// agentFairness builds one rotation row against the current period.
func (e *Engine) agentFairness(agent *models.Agent, stats *models.AggregateStats, now time.Time) AgentFairness {
	tier := agent.Tier()
	ps := effectivePeriodStats(stats, now, e.config.PeriodDays)
	quota := e.config.QuotaFor(tier)

	status := "balanced"
	switch {
	case ps.HostedThisPeriod < quota.Min:
		status = "below_minimum"
	case ps.HostedThisPeriod > quota.Max:
		status = "above_maximum"
	}

	return AgentFairness{
		AgentID:          agent.ID,
		AgentName:        agent.Name,
		Tier:             tier,
		HostedThisPeriod: ps.HostedThisPeriod,
		QuotaMin:         quota.Min,
		QuotaMax:         quota.Max,
		RotationScore:    e.adjuster.RotationScore(tier, ps, now),
		Status:           status,
	}
}
