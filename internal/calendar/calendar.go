// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package calendar answers agent availability questions for the
// recommendation engine.
//
// Agents publish recurring weekly windows ("Saturdays 09:00-17:00").
// An agent is available for a slot when a window covers it and no other
// scheduled open house they are hosting overlaps it. Agents with no
// windows at all are treated as always available, matching how new
// agents behave before they configure a schedule.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tlogandesigns/open-pair/internal/models"
)

const windowKeyPrefix = "availability:"

// Window is a recurring weekly availability window for one agent.
type Window struct {
	// AgentID references the agent.
	AgentID string `json:"agent_id"`

	// Weekday is the day of week the window recurs on.
	Weekday time.Weekday `json:"weekday"`

	// Start and End are clock times in "15:04" format.
	Start string `json:"start"`
	End   string `json:"end"`

	// Available is false for blocked-out windows (time off).
	Available bool `json:"available"`
}

// Result is the availability answer for one (agent, slot) pair.
type Result struct {
	// Available reports whether the agent can take the slot.
	Available bool `json:"available"`

	// Reason explains an unavailable result.
	Reason string `json:"reason,omitempty"`
}

// ScheduleReader lists an agent's upcoming hosting commitments so slots
// that collide with an existing booking are rejected.
type ScheduleReader interface {
	ListOpenHouses(ctx context.Context, status models.OpenHouseStatus) ([]models.OpenHouse, error)
}

// Service checks agent availability against published windows and the
// open house schedule.
type Service struct {
	db       *badger.DB
	schedule ScheduleReader
}

// New creates an availability service over a shared Badger database.
func New(db *badger.DB, schedule ScheduleReader) *Service {
	return &Service{db: db, schedule: schedule}
}

// SetWindows replaces an agent's recurring windows.
func (s *Service) SetWindows(ctx context.Context, agentID string, windows []Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range windows {
		windows[i].AgentID = agentID
	}
	data, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("marshal windows: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(windowKeyPrefix+agentID), data)
	})
}

// Windows returns an agent's recurring windows. Empty when none are set.
func (s *Service) Windows(ctx context.Context, agentID string) ([]Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var windows []Window
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(windowKeyPrefix + agentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &windows)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load windows for %s: %w", agentID, err)
	}
	return windows, nil
}

// Check reports whether the agent is free for [start, end).
func (s *Service) Check(ctx context.Context, agentID string, start, end time.Time) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	windows, err := s.Windows(ctx, agentID)
	if err != nil {
		return Result{}, err
	}

	if res := checkWindows(windows, start, end); !res.Available {
		return res, nil
	}

	if s.schedule != nil {
		conflict, err := s.findConflict(ctx, agentID, start, end)
		if err != nil {
			return Result{}, err
		}
		if conflict != "" {
			return Result{Available: false, Reason: "already hosting open house " + conflict}, nil
		}
	}

	return Result{Available: true}, nil
}

// checkWindows evaluates the recurring window rules for a slot. Available
// windows on the slot's weekday are merged first so a slot spanning two
// back-to-back windows still counts as covered.
func checkWindows(windows []Window, start, end time.Time) Result {
	if len(windows) == 0 {
		// No schedule published yet.
		return Result{Available: true}
	}

	startClock := start.Format("15:04")
	endClock := end.Format("15:04")

	var available []Window
	for _, w := range windows {
		if w.Weekday != start.Weekday() {
			continue
		}
		if !w.Available {
			if w.Start <= startClock && w.End >= endClock {
				return Result{Available: false, Reason: "blocked out for this time"}
			}
			continue
		}
		available = append(available, w)
	}

	for _, w := range mergeWindows(available) {
		if w.Start <= startClock && w.End >= endClock {
			return Result{Available: true}
		}
	}
	return Result{Available: false, Reason: "outside available hours"}
}

// mergeWindows coalesces overlapping or touching clock ranges. Input windows
// all share one weekday; the slice is reordered in place.
func mergeWindows(windows []Window) []Window {
	if len(windows) < 2 {
		return windows
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

	merged := windows[:1]
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// findConflict returns the ID of a scheduled open house the agent hosts
// that overlaps the slot, or "".
func (s *Service) findConflict(ctx context.Context, agentID string, start, end time.Time) (string, error) {
	scheduled, err := s.schedule.ListOpenHouses(ctx, models.OpenHouseScheduled)
	if err != nil {
		return "", fmt.Errorf("list scheduled open houses: %w", err)
	}

	for _, oh := range scheduled {
		if oh.HostAgentID != agentID {
			continue
		}
		if start.Before(oh.EndTime) && oh.StartTime.Before(end) {
			return oh.ID, nil
		}
	}
	return "", nil
}
