// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/models"
)

// fakeProvider is an in-memory DataProvider for engine tests.
type fakeProvider struct {
	agents     []models.Agent
	listings   map[string]*models.Listing
	openHouses map[string]*models.OpenHouse
	aggregates map[string]*models.AggregateStats
	records    []models.HostingRecord
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		listings:   make(map[string]*models.Listing),
		openHouses: make(map[string]*models.OpenHouse),
		aggregates: make(map[string]*models.AggregateStats),
	}
}

func (f *fakeProvider) GetOpenHouse(_ context.Context, id string) (*models.OpenHouse, error) {
	oh, ok := f.openHouses[id]
	if !ok {
		return nil, fmt.Errorf("open house %s: %w", id, ErrNotFound)
	}
	return oh, nil
}

func (f *fakeProvider) GetListing(_ context.Context, id string) (*models.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return l, nil
}

func (f *fakeProvider) ListActiveAgents(_ context.Context) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeProvider) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	for i := range f.agents {
		if f.agents[i].ID == id {
			return &f.agents[i], nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
}

func (f *fakeProvider) GetAggregate(_ context.Context, agentID string) (*models.AggregateStats, error) {
	return f.aggregates[agentID].Clone(), nil
}

func (f *fakeProvider) ListRecords(_ context.Context) ([]models.HostingRecord, error) {
	out := make([]models.HostingRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

// fakeAvailability marks listed agent IDs as busy.
type fakeAvailability struct {
	busy map[string]bool
}

func (f *fakeAvailability) Check(_ context.Context, agentID string, _, _ time.Time) (bool, string, error) {
	if f.busy[agentID] {
		return false, "already booked", nil
	}
	return true, "", nil
}

func testEngine(t *testing.T, provider DataProvider) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CacheTTL = 0 // cache off unless a test opts in
	e, err := NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetDataProvider(provider)
	return e
}

func seedOpenHouse(p *fakeProvider) {
	start := time.Now().UTC().AddDate(0, 0, 2)
	p.listings["l1"] = &models.Listing{
		ID: "l1", ZipCode: "78701", Price: 500000, PropertyType: "single_family",
	}
	p.openHouses["oh1"] = &models.OpenHouse{
		ID: "oh1", ListingID: "l1",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Status:    models.OpenHouseScheduled,
	}
}

func TestRecommendNoAgentsIsEmptyList(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	e := testEngine(t, p)

	list, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(list.Items) != 0 {
		t.Errorf("items = %d, want empty list for empty roster", len(list.Items))
	}
	if list.OpenHouseID != "oh1" {
		t.Errorf("OpenHouseID = %q", list.OpenHouseID)
	}
}

func TestRecommendAllFilteredIsError(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	p.agents = []models.Agent{
		{ID: "a1", Name: "Ann", Active: true},
		{ID: "a2", Name: "Bob", Active: true},
	}
	e := testEngine(t, p)
	e.SetAvailabilityChecker(&fakeAvailability{busy: map[string]bool{"a1": true, "a2": true}})

	_, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if !errors.Is(err, ErrNoEligibleAgents) {
		t.Fatalf("err = %v, want ErrNoEligibleAgents", err)
	}
}

func TestRecommendUnknownOpenHouse(t *testing.T) {
	e := testEngine(t, newFakeProvider())
	_, err := e.Recommend(context.Background(), Request{OpenHouseID: "nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecommendMissingIDIsInvalid(t *testing.T) {
	e := testEngine(t, newFakeProvider())
	_, err := e.Recommend(context.Background(), Request{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRecommendRankingOrder(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	// Three agents with clearly separable heuristic scores: a strong local
	// expert, a plain mid performer, and an overloaded senior.
	p.agents = []models.Agent{
		{ID: "a1", Name: "Expert", Active: true, ExperienceYears: 6, AreasOfExpertise: []string{"78701"}},
		{ID: "a2", Name: "Plain", Active: true, ExperienceYears: 3},
		{ID: "a3", Name: "Overloaded", Active: true, ExperienceYears: 10},
	}
	now := time.Now().UTC()
	p.aggregates["a1"] = &models.AggregateStats{
		AgentID: "a1", HostedTotal: 8, HostedThisPeriod: 5,
		PeriodStart: now.AddDate(0, 0, -10), LastHostedAt: now.AddDate(0, 0, -3),
	}
	p.aggregates["a3"] = &models.AggregateStats{
		AgentID: "a3", HostedTotal: 60, HostedThisPeriod: 20,
		PeriodStart: now.AddDate(0, 0, -10), LastHostedAt: now,
	}
	e := testEngine(t, p)

	list, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(list.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(list.Items))
	}
	for i := 1; i < len(list.Items); i++ {
		if list.Items[i].FairnessScore > list.Items[i-1].FairnessScore {
			t.Errorf("list not ordered: %g before %g", list.Items[i-1].FairnessScore, list.Items[i].FairnessScore)
		}
		if list.Items[i].Rank != i+1 {
			t.Errorf("rank[%d] = %d", i, list.Items[i].Rank)
		}
	}
	if last := list.Items[2]; last.AgentID != "a3" {
		t.Errorf("overloaded senior ranked %d, want last", last.Rank)
	}
	if list.ModelVersion != 0 {
		t.Errorf("ModelVersion = %d with no trained model, want 0", list.ModelVersion)
	}
	for _, item := range list.Items {
		if item.Path != PathHeuristic {
			t.Errorf("agent %s scored via %v, want heuristic", item.AgentID, item.Path)
		}
	}
}

func TestRecommendRotationLiftsQuietAgent(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	// Identical profiles; one hosted heavily this period, one never hosted.
	p.agents = []models.Agent{
		{ID: "busy", Name: "Busy", Active: true, ExperienceYears: 3},
		{ID: "quiet", Name: "Quiet", Active: true, ExperienceYears: 3},
	}
	now := time.Now().UTC()
	p.aggregates["busy"] = &models.AggregateStats{
		AgentID: "busy", HostedTotal: 30, HostedThisPeriod: 13,
		PeriodStart: now.AddDate(0, 0, -5), LastHostedAt: now.AddDate(0, 0, -1),
	}
	e := testEngine(t, p)

	list, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if list.Items[0].AgentID != "quiet" {
		t.Fatalf("top agent = %s, want never-hosted agent lifted by rotation", list.Items[0].AgentID)
	}
	top := list.Items[0]
	if top.Fairness.DeficitBonus == 0 || top.Fairness.RecencyBonus == 0 {
		t.Errorf("expected deficit and never-hosted bonuses, got %+v", top.Fairness)
	}
}

func TestRecommendTopNTruncation(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	for i := 0; i < 6; i++ {
		p.agents = append(p.agents, models.Agent{
			ID: fmt.Sprintf("a%d", i), Name: fmt.Sprintf("Agent %d", i), Active: true, ExperienceYears: i,
		})
	}
	e := testEngine(t, p)

	list, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(list.Items) != 3 {
		t.Errorf("items = %d, want configured top 3", len(list.Items))
	}
	if list.TotalCandidates != 6 {
		t.Errorf("TotalCandidates = %d, want 6", list.TotalCandidates)
	}

	list, err = e.Recommend(context.Background(), Request{OpenHouseID: "oh1", TopN: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(list.Items) != 5 {
		t.Errorf("items = %d with top_n=5, want 5", len(list.Items))
	}
}

func TestRecommendCacheInvalidation(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	p.agents = []models.Agent{{ID: "a1", Name: "Ann", Active: true}}

	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	e, err := NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetDataProvider(p)

	first, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	// A second agent appears, but the cached list is served until an
	// invalidation lands.
	p.agents = append(p.agents, models.Agent{ID: "a2", Name: "Bob", Active: true})
	cached, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if cached.TotalCandidates != first.TotalCandidates {
		t.Fatalf("expected cached list before invalidation")
	}

	e.InvalidateCache()
	fresh, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if fresh.TotalCandidates != 2 {
		t.Errorf("TotalCandidates = %d after invalidation, want 2", fresh.TotalCandidates)
	}
}

func TestFairnessReport(t *testing.T) {
	p := newFakeProvider()
	p.agents = []models.Agent{
		{ID: "j", Name: "Junior", Active: true, ExperienceYears: 1},
		{ID: "m", Name: "Mid", Active: true, ExperienceYears: 3},
		{ID: "s", Name: "Senior", Active: true, ExperienceYears: 9},
	}
	now := time.Now().UTC()
	p.aggregates["m"] = &models.AggregateStats{
		AgentID: "m", HostedTotal: 20, HostedThisPeriod: 5,
		PeriodStart: now.AddDate(0, 0, -5), LastHostedAt: now.AddDate(0, 0, -2),
	}
	p.aggregates["s"] = &models.AggregateStats{
		AgentID: "s", HostedTotal: 90, HostedThisPeriod: 18,
		PeriodStart: now.AddDate(0, 0, -5), LastHostedAt: now,
	}
	e := testEngine(t, p)

	report, err := e.FairnessReport(context.Background())
	if err != nil {
		t.Fatalf("FairnessReport: %v", err)
	}
	if report.ActiveAgents != 3 {
		t.Errorf("ActiveAgents = %d, want 3", report.ActiveAgents)
	}
	// Junior never hosted (below min 2); senior is over max 16; mid is
	// balanced (5 within [3,12]).
	if report.BelowMinimum != 1 || report.AboveMaximum != 1 {
		t.Errorf("below/above = %d/%d, want 1/1", report.BelowMinimum, report.AboveMaximum)
	}
	if report.Agents[0].AgentID != "j" {
		t.Errorf("most deserving = %s, want the never-hosted junior", report.Agents[0].AgentID)
	}
	if report.TierDistribution["junior"] != 1 || report.TierDistribution["senior"] != 1 {
		t.Errorf("TierDistribution = %v", report.TierDistribution)
	}
	for _, row := range report.Agents {
		switch row.AgentID {
		case "j":
			if row.Status != "below_minimum" {
				t.Errorf("junior status = %q", row.Status)
			}
		case "m":
			if row.Status != "balanced" {
				t.Errorf("mid status = %q", row.Status)
			}
		case "s":
			if row.Status != "above_maximum" {
				t.Errorf("senior status = %q", row.Status)
			}
		}
	}
}

func TestRecommendStrongRecordHoldsLead(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	// A senior with an outstanding, in-quota record against a rookie whose
	// rotation lift is only a one-slot deficit. The raw gap has to win.
	p.agents = []models.Agent{
		{ID: "star", Name: "Star", Active: true, ExperienceYears: 10, AreasOfExpertise: []string{"78701"}},
		{ID: "rookie", Name: "Rookie", Active: true, ExperienceYears: 0},
	}
	now := time.Now().UTC()
	p.aggregates["star"] = &models.AggregateStats{
		AgentID: "star", HostedTotal: 40, HostedThisPeriod: 8,
		PeriodStart: now.AddDate(0, 0, -10), LastHostedAt: now.AddDate(0, 0, -5),
		TotalAttendees: 100, ConversionRate: 0.5,
		TotalLeads: 50, SuccessRate: 0.5,
		FeedbackCount: 20, AvgFeedback: 5.0,
		MinPrice: 300000, MaxPrice: 700000,
		PropertyTypeCounts: map[string]int{"single_family": 30, "condo": 6, "townhouse": 4},
	}
	p.aggregates["rookie"] = &models.AggregateStats{
		AgentID: "rookie", HostedTotal: 1, HostedThisPeriod: 1,
		PeriodStart: now.AddDate(0, 0, -10), LastHostedAt: now.AddDate(0, 0, -5),
	}
	e := testEngine(t, p)

	list, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if list.Items[0].AgentID != "star" {
		t.Fatalf("top agent = %s, want the stronger record on top", list.Items[0].AgentID)
	}
	rookie := list.Items[1]
	if rookie.Fairness.DeficitBonus == 0 {
		t.Errorf("rookie below quota should still carry a deficit bonus, got %+v", rookie.Fairness)
	}
	if rookie.FairnessScore >= list.Items[0].FairnessScore {
		t.Errorf("rotation lift %g overtook raw gap against %g", rookie.FairnessScore, list.Items[0].FairnessScore)
	}
}

func TestRecommendCandidateCapAfterFiltering(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	p.agents = []models.Agent{
		{ID: "a1", Name: "Booked", Active: true, ExperienceYears: 3},
		{ID: "a2", Name: "Free", Active: true, ExperienceYears: 3},
		{ID: "a3", Name: "AlsoFree", Active: true, ExperienceYears: 3},
	}
	cfg := DefaultConfig()
	cfg.CacheTTL = 0
	cfg.MaxCandidates = 2
	e, err := NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.SetDataProvider(p)
	e.SetAvailabilityChecker(&fakeAvailability{busy: map[string]bool{"a1": true}})

	list, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	// The busy agent must not consume a candidate slot: both free agents
	// fit under the cap of 2.
	if len(list.Items) != 2 {
		t.Fatalf("items = %d, want both eligible agents under the cap", len(list.Items))
	}
	for _, item := range list.Items {
		if item.AgentID == "a1" {
			t.Errorf("booked agent %s made the list", item.AgentID)
		}
	}
}

// faultyAvailability fails the check for listed agents.
type faultyAvailability struct {
	fail map[string]bool
}

func (f *faultyAvailability) Check(_ context.Context, agentID string, _, _ time.Time) (bool, string, error) {
	if f.fail[agentID] {
		return false, "", errors.New("calendar store offline")
	}
	return true, "", nil
}

func TestRecommendSkipsFailingAvailabilityCheck(t *testing.T) {
	p := newFakeProvider()
	seedOpenHouse(p)
	p.agents = []models.Agent{
		{ID: "a1", Name: "Ann", Active: true, ExperienceYears: 3},
		{ID: "a2", Name: "Bob", Active: true, ExperienceYears: 3},
	}
	e := testEngine(t, p)
	e.SetAvailabilityChecker(&faultyAvailability{fail: map[string]bool{"a1": true}})

	list, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"})
	if err != nil {
		t.Fatalf("one failing availability check must not abort the request: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].AgentID != "a2" {
		t.Fatalf("items = %v, want only the checkable agent", list.Items)
	}

	e.SetAvailabilityChecker(&faultyAvailability{fail: map[string]bool{"a1": true, "a2": true}})
	if _, err := e.Recommend(context.Background(), Request{OpenHouseID: "oh1"}); !errors.Is(err, ErrNoEligibleAgents) {
		t.Fatalf("err = %v, want ErrNoEligibleAgents when every check fails", err)
	}
}

func TestFairnessFor(t *testing.T) {
	p := newFakeProvider()
	p.agents = []models.Agent{
		{ID: "j", Name: "Junior", Active: true, ExperienceYears: 1},
		{ID: "s", Name: "Senior", Active: true, ExperienceYears: 9},
	}
	now := time.Now().UTC()
	p.aggregates["s"] = &models.AggregateStats{
		AgentID: "s", HostedTotal: 90, HostedThisPeriod: 18,
		PeriodStart: now.AddDate(0, 0, -5), LastHostedAt: now,
	}
	e := testEngine(t, p)

	row, err := e.FairnessFor(context.Background(), "s")
	if err != nil {
		t.Fatalf("FairnessFor: %v", err)
	}
	if row.AgentID != "s" || row.Status != "above_maximum" {
		t.Errorf("row = %+v, want senior above_maximum", row)
	}
	if row.QuotaMin != 4 || row.QuotaMax != 16 {
		t.Errorf("quota = [%d,%d], want senior [4,16]", row.QuotaMin, row.QuotaMax)
	}

	row, err = e.FairnessFor(context.Background(), "j")
	if err != nil {
		t.Fatalf("FairnessFor: %v", err)
	}
	if row.Status != "below_minimum" || row.HostedThisPeriod != 0 {
		t.Errorf("never-hosted junior row = %+v", row)
	}

	if _, err := e.FairnessFor(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown agent err = %v, want ErrNotFound", err)
	}
	if _, err := e.FairnessFor(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty id err = %v, want ErrInvalidInput", err)
	}
}
