// Package attendance builds a coach's daily attendance board and applies
// marking-window rules before anything reaches the backend.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/diagnosis/fitkeeda-web/internal/utils"
	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/window"
	"golang.org/x/sync/errgroup"
)

var (
	ErrOutsideWindow = errors.New("attendance can only be marked 10 minutes before or after the session start")
	ErrCoachNotFound = errors.New("no coach matches this login")
	ErrNotOnBoard    = errors.New("session is not on today's board")
)

// Backend is the subset of the API client the service needs.
type Backend interface {
	ListCoaches(ctx context.Context) ([]api.Coach, error)
	SeedTodayAttendance(ctx context.Context, coachID string) (*api.SeedResult, error)
	TodayAttendance(ctx context.Context, coachID string) ([]api.AttendanceRecord, error)
	MarkAttendance(ctx context.Context, m api.MarkAttendance) error
}

// Entry is one row of the board.
type Entry struct {
	api.AttendanceRecord
	CanMark bool
	Window  window.Window
}

type CoachDay struct {
	Coach   api.Coach
	Records []api.AttendanceRecord
}

type Service struct {
	backend Backend
	events  events.Publisher
	Now     func() time.Time
}

func New(backend Backend, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{backend: backend, events: publisher, Now: time.Now}
}

// ResolveCoach finds the coach whose phone matches the login's phone hint.
// The hint is untrusted; the backend still authorizes every call.
func (s *Service) ResolveCoach(ctx context.Context, phone string) (*api.Coach, error) {
	if utils.NormalizePhone(phone) == "" {
		return nil, ErrCoachNotFound
	}
	coaches, err := s.backend.ListCoaches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coaches: %w", err)
	}
	for i := range coaches {
		if utils.SamePhone(coaches[i].Phone, phone) {
			return &coaches[i], nil
		}
	}
	return nil, ErrCoachNotFound
}

// Board seeds today's records for coachID and returns the ones attached to a
// session, earliest slot first. Records whose slot cannot be read are listed
// last and are never markable.
func (s *Service) Board(ctx context.Context, coachID string) ([]Entry, error) {
	if res, err := s.backend.SeedTodayAttendance(ctx, coachID); err != nil {
		logger.WarnContext(ctx, "Failed to seed today's attendance", "coach_id", coachID, "error", err)
	} else {
		logger.DebugContext(ctx, "Seeded attendance", "coach_id", coachID, "count", res.SeededCount)
	}

	records, err := s.backend.TodayAttendance(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's attendance: %w", err)
	}

	now := s.Now()
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		if rec.Session == nil {
			continue
		}
		e := Entry{AttendanceRecord: rec}
		if slot, err := window.ParseSlot(rec.Session.Slot); err == nil {
			e.Window = window.For(slot, now)
			e.CanMark = e.Window.Contains(now)
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Window.Start, entries[j].Window.Start
		if a.IsZero() || b.IsZero() {
			// Unreadable slots go last.
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
	return entries, nil
}

// Toggle flips a session's status for today. It re-reads the board so the
// window is checked against the backend's slot, not anything the browser
// sent.
func (s *Service) Toggle(ctx context.Context, coachID, sessionID string) (string, error) {
	records, err := s.backend.TodayAttendance(ctx, coachID)
	if err != nil {
		return "", fmt.Errorf("failed to load today's attendance: %w", err)
	}

	var rec *api.AttendanceRecord
	for i := range records {
		if records[i].SessionID == sessionID && records[i].Session != nil {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		return "", ErrNotOnBoard
	}

	now := s.Now()
	if !window.CanMark(rec.Session.Slot, now) {
		return "", ErrOutsideWindow
	}

	status := api.StatusPresent
	if rec.Status == api.StatusPresent {
		status = api.StatusAbsent
	}
	if err := s.backend.MarkAttendance(ctx, api.MarkAttendance{
		CoachID:   coachID,
		SessionID: sessionID,
		Status:    status,
	}); err != nil {
		return "", fmt.Errorf("failed to mark attendance: %w", err)
	}

	logger.InfoContext(ctx, "Attendance marked",
		"coach_id", coachID,
		"session_id", sessionID,
		"status", status,
	)
	evt := events.AttendanceMarkedEvent{CoachID: coachID, SessionID: sessionID, Status: status, MarkedAt: now.UTC()}
	if err := s.events.Publish(ctx, events.AttendanceMarked, evt); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", events.AttendanceMarked, "error", err)
	}
	return status, nil
}

// Overview loads today's records for every coach. Lookups run concurrently
// and the result is only returned once all of them have finished.
func (s *Service) Overview(ctx context.Context) ([]CoachDay, error) {
	coaches, err := s.backend.ListCoaches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coaches: %w", err)
	}

	days := make([]CoachDay, len(coaches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range coaches {
		days[i].Coach = c
		if c.ID == "" {
			continue
		}
		g.Go(func() error {
			records, err := s.backend.TodayAttendance(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("coach %s: %w", c.ID, err)
			}
			days[i].Records = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return days, nil
}
