package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/attendance"
)

type fakeBackend struct {
	mu      sync.Mutex
	coaches []api.Coach
	records map[string][]api.AttendanceRecord
	marks   []api.MarkAttendance
	seeded  []string
	failFor string
}

func (f *fakeBackend) ListCoaches(context.Context) ([]api.Coach, error) {
	return f.coaches, nil
}

func (f *fakeBackend) SeedTodayAttendance(_ context.Context, coachID string) (*api.SeedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded = append(f.seeded, coachID)
	return &api.SeedResult{Success: true}, nil
}

func (f *fakeBackend) TodayAttendance(_ context.Context, coachID string) ([]api.AttendanceRecord, error) {
	if coachID == f.failFor {
		return nil, errors.New("backend down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[coachID], nil
}

func (f *fakeBackend) MarkAttendance(_ context.Context, m api.MarkAttendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, m)
	return nil
}

func at(hour, minute int) func() time.Time {
	return func() time.Time { return time.Date(2025, 3, 14, hour, minute, 0, 0, time.Local) }
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		coaches: []api.Coach{
			{ID: "c1", Name: "Asha", Phone: " 9876543210 "},
			{ID: "c2", Name: "Vikram", Phone: "9123456780"},
		},
		records: map[string][]api.AttendanceRecord{
			"c1": {
				{SessionID: "s-eve", CoachID: "c1", Status: api.StatusAbsent, Session: &api.Session{ID: "s-eve", Slot: "06:00 PM", Sport: "Zumba"}},
				{SessionID: "s-am", CoachID: "c1", Status: api.StatusAbsent, Session: &api.Session{ID: "s-am", Slot: "10:00 AM", Sport: "Yoga"}},
				{SessionID: "orphan", CoachID: "c1", Status: api.StatusAbsent},
			},
		},
	}
}

func TestResolveCoach(t *testing.T) {
	svc := attendance.New(newBackend(), nil)

	c, err := svc.ResolveCoach(context.Background(), "9876543210")
	if err != nil || c.ID != "c1" {
		t.Fatalf("expected c1, got %+v, %v", c, err)
	}
	if _, err := svc.ResolveCoach(context.Background(), "0000000000"); !errors.Is(err, attendance.ErrCoachNotFound) {
		t.Fatalf("expected ErrCoachNotFound, got %v", err)
	}
	if _, err := svc.ResolveCoach(context.Background(), ""); !errors.Is(err, attendance.ErrCoachNotFound) {
		t.Fatalf("expected ErrCoachNotFound for blank hint, got %v", err)
	}
}

func TestBoard_SortsAndFlagsMarkable(t *testing.T) {
	be := newBackend()
	svc := attendance.New(be, nil)
	svc.Now = at(9, 51)

	entries, err := svc.Board(context.Background(), "c1")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(be.seeded) != 1 || be.seeded[0] != "c1" {
		t.Fatalf("expected today's records seeded for c1, got %v", be.seeded)
	}
	if len(entries) != 2 {
		t.Fatalf("expected records without a session to be dropped, got %d", len(entries))
	}
	if entries[0].SessionID != "s-am" || entries[1].SessionID != "s-eve" {
		t.Fatalf("expected earliest slot first, got %s, %s", entries[0].SessionID, entries[1].SessionID)
	}
	if !entries[0].CanMark || entries[1].CanMark {
		t.Fatalf("unexpected markable flags: %v %v", entries[0].CanMark, entries[1].CanMark)
	}
}

func TestBoard_UnreadableSlotsLast(t *testing.T) {
	be := newBackend()
	be.records["c1"] = append([]api.AttendanceRecord{
		{SessionID: "s-bad", CoachID: "c1", Status: api.StatusAbsent, Session: &api.Session{ID: "s-bad", Slot: "morning", Sport: "Karate"}},
	}, be.records["c1"]...)
	svc := attendance.New(be, nil)
	svc.Now = at(9, 51)

	entries, err := svc.Board(context.Background(), "c1")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	var order []string
	for _, e := range entries {
		order = append(order, e.SessionID)
	}
	if len(order) != 3 || order[0] != "s-am" || order[1] != "s-eve" || order[2] != "s-bad" {
		t.Fatalf("expected unreadable slot last, got %v", order)
	}
	if entries[2].CanMark {
		t.Fatal("unreadable slot reported as markable")
	}
}

func TestToggle(t *testing.T) {
	tests := []struct {
		name    string
		now     func() time.Time
		session string
		want    string
		wantErr error
	}{
		{"inside window", at(10, 10), "s-am", api.StatusPresent, nil},
		{"just outside window", at(10, 11), "s-am", "", attendance.ErrOutsideWindow},
		{"evening slot in the morning", at(10, 0), "s-eve", "", attendance.ErrOutsideWindow},
		{"unknown session", at(10, 0), "nope", "", attendance.ErrNotOnBoard},
		{"session-less record", at(10, 0), "orphan", "", attendance.ErrNotOnBoard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := newBackend()
			svc := attendance.New(be, nil)
			svc.Now = tt.now

			got, err := svc.Toggle(context.Background(), "c1", tt.session)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("status = %q, want %q", got, tt.want)
			}
			if tt.wantErr != nil && len(be.marks) != 0 {
				t.Fatal("backend was called although marking was refused")
			}
			if tt.wantErr == nil && (len(be.marks) != 1 || be.marks[0].Status != tt.want) {
				t.Fatalf("unexpected marks %+v", be.marks)
			}
		})
	}
}

func TestToggle_PresentBecomesAbsent(t *testing.T) {
	be := newBackend()
	be.records["c1"][1].Status = api.StatusPresent
	svc := attendance.New(be, nil)
	svc.Now = at(9, 55)

	got, err := svc.Toggle(context.Background(), "c1", "s-am")
	if err != nil || got != api.StatusAbsent {
		t.Fatalf("expected absent, got %q, %v", got, err)
	}
}

func TestOverview(t *testing.T) {
	be := newBackend()
	svc := attendance.New(be, nil)

	days, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(days) != 2 || len(days[0].Records) != 3 || len(days[1].Records) != 0 {
		t.Fatalf("unexpected overview %+v", days)
	}

	be.failFor = "c2"
	if _, err := svc.Overview(context.Background()); err == nil {
		t.Fatal("expected error when one coach lookup fails")
	}
}
