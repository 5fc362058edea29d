// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tlogandesigns/open-pair/internal/calendar"
	"github.com/tlogandesigns/open-pair/internal/directory"
	"github.com/tlogandesigns/open-pair/internal/feedback"
	"github.com/tlogandesigns/open-pair/internal/models"
	"github.com/tlogandesigns/open-pair/internal/recommend"
	"github.com/tlogandesigns/open-pair/internal/store"
)

// testProvider adapts the directory and store to the engine, mirroring the
// wiring in cmd/server.
type testProvider struct {
	dir *directory.Directory
	st  *store.Store
}

func (p *testProvider) GetOpenHouse(ctx context.Context, id string) (*models.OpenHouse, error) {
	oh, err := p.dir.GetOpenHouse(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", recommend.ErrNotFound, err)
		}
		return nil, err
	}
	return oh, nil
}

func (p *testProvider) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	l, err := p.dir.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", recommend.ErrNotFound, err)
		}
		return nil, err
	}
	return l, nil
}

func (p *testProvider) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	a, err := p.dir.GetAgent(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", recommend.ErrNotFound, err)
		}
		return nil, err
	}
	return a, nil
}

func (p *testProvider) ListActiveAgents(ctx context.Context) ([]models.Agent, error) {
	return p.dir.ListAgents(ctx, true)
}

func (p *testProvider) GetAggregate(ctx context.Context, agentID string) (*models.AggregateStats, error) {
	agg, err := p.st.GetAggregate(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrAggregateNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return agg, nil
}

func (p *testProvider) ListRecords(ctx context.Context) ([]models.HostingRecord, error) {
	return p.st.ListHostingRecords(ctx)
}

type calendarChecker struct {
	cal *calendar.Service
}

func (c *calendarChecker) Check(ctx context.Context, agentID string, start, end time.Time) (bool, string, error) {
	res, err := c.cal.Check(ctx, agentID, start, end)
	if err != nil {
		return false, "", err
	}
	return res.Available, res.Reason, nil
}

type testEnv struct {
	handler http.Handler
	dir     *directory.Directory
	cal     *calendar.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(store.Options{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	dir := directory.New(st.DB())
	cal := calendar.New(st.DB(), dir)

	cfg := recommend.DefaultConfig()
	cfg.CacheTTL = 0
	engine, err := recommend.NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetDataProvider(&testProvider{dir: dir, st: st})
	engine.SetAvailabilityChecker(&calendarChecker{cal: cal})

	ing := feedback.New(st, dir, cfg.PeriodDays, zerolog.Nop())
	ing.OnIngest(engine.InvalidateCache)

	srv := NewServer(engine, dir, cal, ing, nil, zerolog.Nop())
	return &testEnv{handler: srv.Router(), dir: dir, cal: cal}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rr.Body.String(), err)
	}
	return rr.Code, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func (e *testEnv) createAgent(t *testing.T, name string, years int, zips []string) models.Agent {
	t.Helper()
	code, env := e.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{
		"name":               name,
		"email":              name + "@example.com",
		"experience_years":   years,
		"areas_of_expertise": zips,
	})
	if code != http.StatusCreated {
		t.Fatalf("create agent: status %d, %+v", code, env.Error)
	}
	var agent models.Agent
	decodeData(t, env, &agent)
	return agent
}

func (e *testEnv) createListing(t *testing.T) models.Listing {
	t.Helper()
	code, env := e.do(t, http.MethodPost, "/api/v1/listings", map[string]interface{}{
		"mls_number":    "MLS-100",
		"address":       "808 Rainey St",
		"city":          "Austin",
		"state":         "TX",
		"zip_code":      "78701",
		"price":         550000,
		"property_type": "condo",
	})
	if code != http.StatusCreated {
		t.Fatalf("create listing: status %d, %+v", code, env.Error)
	}
	var listing models.Listing
	decodeData(t, env, &listing)
	return listing
}

func (e *testEnv) createOpenHouse(t *testing.T, listingID string) models.OpenHouse {
	t.Helper()
	start := time.Now().UTC().AddDate(0, 0, 3).Truncate(time.Hour)
	code, env := e.do(t, http.MethodPost, "/api/v1/open-houses", map[string]interface{}{
		"listing_id": listingID,
		"start_time": start,
		"end_time":   start.Add(2 * time.Hour),
	})
	if code != http.StatusCreated {
		t.Fatalf("create open house: status %d, %+v", code, env.Error)
	}
	var oh models.OpenHouse
	decodeData(t, env, &oh)
	return oh
}

func TestAgentCRUD(t *testing.T) {
	e := newTestEnv(t)

	agent := e.createAgent(t, "dana", 6, []string{"78701"})
	if agent.ID == "" || !agent.Active {
		t.Fatalf("created agent = %+v", agent)
	}

	code, env := e.do(t, http.MethodGet, "/api/v1/agents/"+agent.ID, nil)
	if code != http.StatusOK {
		t.Fatalf("get agent: %d", code)
	}
	var got models.Agent
	decodeData(t, env, &got)
	if got.Name != "dana" || got.Tier() != models.TierSenior {
		t.Errorf("agent = %+v", got)
	}

	code, env = e.do(t, http.MethodPut, "/api/v1/agents/"+agent.ID, map[string]interface{}{
		"name":             "dana",
		"email":            "dana@example.com",
		"experience_years": 1,
		"active":           false,
	})
	if code != http.StatusOK {
		t.Fatalf("update agent: %d %+v", code, env.Error)
	}
	decodeData(t, env, &got)
	if got.Active || got.ExperienceYears != 1 {
		t.Errorf("updated agent = %+v", got)
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/agents?active=true", nil)
	if code != http.StatusOK {
		t.Fatalf("list agents: %d", code)
	}
	var agents []models.Agent
	decodeData(t, env, &agents)
	if len(agents) != 0 {
		t.Errorf("active agents = %d, want 0 after deactivation", len(agents))
	}
}

func TestAgentValidationAndNotFound(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{
		"email": "not-an-email",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v", env.Error)
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/agents/ghost", nil)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestAvailabilityEndpoints(t *testing.T) {
	e := newTestEnv(t)
	agent := e.createAgent(t, "rob", 3, nil)

	code, _ := e.do(t, http.MethodPut, "/api/v1/agents/"+agent.ID+"/availability", map[string]interface{}{
		"windows": []map[string]interface{}{
			{"weekday": 6, "start": "09:00", "end": "17:00", "available": true},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("set availability: %d", code)
	}

	code, env := e.do(t, http.MethodGet, "/api/v1/agents/"+agent.ID+"/availability", nil)
	if code != http.StatusOK {
		t.Fatalf("get availability: %d", code)
	}
	var windows []calendar.Window
	decodeData(t, env, &windows)
	if len(windows) != 1 || windows[0].Start != "09:00" {
		t.Errorf("windows = %+v", windows)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.createAgent(t, "ana", 7, []string{"78701"})
	e.createAgent(t, "ben", 3, nil)
	listing := e.createListing(t)
	oh := e.createOpenHouse(t, listing.ID)

	code, env := e.do(t, http.MethodGet, "/api/v1/open-houses/"+oh.ID+"/recommendations", nil)
	if code != http.StatusOK {
		t.Fatalf("recommendations: %d %+v", code, env.Error)
	}
	var list recommend.RankedList
	decodeData(t, env, &list)
	if list.OpenHouseID != oh.ID || len(list.Items) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list.Items[0].Rank != 1 || list.Items[0].AgentID == "" {
		t.Errorf("top item = %+v", list.Items[0])
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/open-houses/"+oh.ID+"/recommendations?top_n=1", nil)
	if code != http.StatusOK {
		t.Fatalf("top_n=1: %d", code)
	}
	decodeData(t, env, &list)
	if len(list.Items) != 1 {
		t.Errorf("items = %d with top_n=1", len(list.Items))
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/open-houses/"+oh.ID+"/recommendations?top_n=zero", nil)
	if code != http.StatusBadRequest {
		t.Errorf("bad top_n: %d", code)
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/open-houses/ghost/recommendations", nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown open house: %d", code)
	}
}

func TestRecommendationsNoEligibleAgents(t *testing.T) {
	e := newTestEnv(t)
	agent := e.createAgent(t, "solo", 4, nil)
	listing := e.createListing(t)
	oh := e.createOpenHouse(t, listing.ID)

	// Publish a schedule that never covers the open house slot.
	if err := e.cal.SetWindows(context.Background(), agent.ID, []calendar.Window{
		{Weekday: time.Monday, Start: "00:00", End: "00:01", Available: true},
	}); err != nil {
		t.Fatalf("SetWindows: %v", err)
	}

	code, env := e.do(t, http.MethodGet, "/api/v1/open-houses/"+oh.ID+"/recommendations", nil)
	if code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeNoEligibleAgents {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestOutcomeEndpointIdempotent(t *testing.T) {
	e := newTestEnv(t)
	agent := e.createAgent(t, "host", 5, nil)
	listing := e.createListing(t)
	oh := e.createOpenHouse(t, listing.ID)

	payload := map[string]interface{}{
		"open_house_id":  oh.ID,
		"agent_id":       agent.ID,
		"attendees":      14,
		"leads":          3,
		"offers":         1,
		"feedback_score": 4.2,
	}
	code, env := e.do(t, http.MethodPost, "/api/v1/outcomes", payload)
	if code != http.StatusCreated {
		t.Fatalf("first submission: %d %+v", code, env.Error)
	}
	var result struct {
		Record  models.HostingRecord `json:"record"`
		Created bool                 `json:"created"`
	}
	decodeData(t, env, &result)
	if !result.Created || result.Record.AgentID != agent.ID {
		t.Fatalf("result = %+v", result)
	}
	firstID := result.Record.ID

	code, env = e.do(t, http.MethodPost, "/api/v1/outcomes", payload)
	if code != http.StatusOK {
		t.Fatalf("replay: %d %+v", code, env.Error)
	}
	decodeData(t, env, &result)
	if result.Created || result.Record.ID != firstID {
		t.Errorf("replay result = %+v", result)
	}
}

func TestOutcomeEndpointErrors(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodPost, "/api/v1/outcomes", map[string]interface{}{
		"open_house_id": "ghost",
	})
	if code != http.StatusNotFound {
		t.Errorf("unknown open house: %d %+v", code, env.Error)
	}

	code, env = e.do(t, http.MethodPost, "/api/v1/outcomes", map[string]interface{}{
		"attendees": -2,
	})
	if code != http.StatusBadRequest {
		t.Errorf("invalid payload: %d", code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestFairnessReportEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.createAgent(t, "one", 2, nil)
	e.createAgent(t, "two", 8, nil)

	code, env := e.do(t, http.MethodGet, "/api/v1/fairness/report", nil)
	if code != http.StatusOK {
		t.Fatalf("fairness report: %d", code)
	}
	var report recommend.FairnessReport
	decodeData(t, env, &report)
	if report.ActiveAgents != 2 || len(report.Agents) != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestFairnessReportSingleAgent(t *testing.T) {
	e := newTestEnv(t)
	junior := e.createAgent(t, "one", 2, nil)
	e.createAgent(t, "two", 8, nil)

	code, env := e.do(t, http.MethodGet, "/api/v1/fairness/report?agent_id="+junior.ID, nil)
	if code != http.StatusOK {
		t.Fatalf("agent fairness: %d %+v", code, env.Error)
	}
	var row recommend.AgentFairness
	decodeData(t, env, &row)
	if row.AgentID != junior.ID {
		t.Errorf("AgentID = %q, want %q", row.AgentID, junior.ID)
	}
	if row.Status != "below_minimum" {
		t.Errorf("Status = %q, want below_minimum for a never-hosted agent", row.Status)
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/fairness/report?agent_id=ghost", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown agent: %d", code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want %s", env.Error, ErrCodeNotFound)
	}
}

func TestRetrainEndpoints(t *testing.T) {
	e := newTestEnv(t)

	// With no hosting records the run is a skip, not a failure.
	code, env := e.do(t, http.MethodPost, "/api/v1/admin/retrain", nil)
	if code != http.StatusOK {
		t.Fatalf("retrain: %d %+v", code, env.Error)
	}
	var status recommend.RetrainStatus
	decodeData(t, env, &status)
	if status.Outcome != recommend.RetrainSkipped {
		t.Errorf("outcome = %v", status.Outcome)
	}

	code, env = e.do(t, http.MethodGet, "/api/v1/admin/retrain", nil)
	if code != http.StatusOK {
		t.Fatalf("retrain status: %d", code)
	}
	decodeData(t, env, &status)
	if status.Outcome != recommend.RetrainSkipped {
		t.Errorf("last outcome = %v", status.Outcome)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)
	code, env := e.do(t, http.MethodGet, "/health", nil)
	if code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	var body map[string]interface{}
	decodeData(t, env, &body)
	if body["status"] != "ok" {
		t.Errorf("health body = %v", body)
	}
}
