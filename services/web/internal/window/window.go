// Package window decides when attendance may be marked for a session slot.
package window

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Tolerance is how far either side of the slot start marking stays open.
const Tolerance = 10 * time.Minute

var ErrBadSlot = errors.New("unrecognised slot")

var slotPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])?$`)

// Slot is a time of day with minute precision.
type Slot struct {
	Hour   int
	Minute int
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// ParseSlot accepts "15:00", "9:05", "03:00 PM" and "3:00pm". A period
// switches to 12-hour parsing, where 12 AM is midnight and 12 PM is noon.
func ParseSlot(raw string) (Slot, error) {
	m := slotPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrBadSlot, raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return Slot{}, fmt.Errorf("%w: %q", ErrBadSlot, raw)
	}

	switch period := strings.ToUpper(m[3]); period {
	case "":
		if hour > 23 {
			return Slot{}, fmt.Errorf("%w: %q", ErrBadSlot, raw)
		}
	default:
		if hour < 1 || hour > 12 {
			return Slot{}, fmt.Errorf("%w: %q", ErrBadSlot, raw)
		}
		hour %= 12
		if period == "PM" {
			hour += 12
		}
	}
	return Slot{Hour: hour, Minute: minute}, nil
}

// Window is the marking interval around one occurrence of a slot.
type Window struct {
	Start  time.Time
	Opens  time.Time
	Closes time.Time
}

// Contains is inclusive at both ends.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Opens) && !t.After(w.Closes)
}

// For returns the window around the occurrence of slot nearest to now.
// Candidates are yesterday, today and tomorrow in now's location, so a 23:55
// slot is still markable at 00:03 the next morning.
func For(slot Slot, now time.Time) Window {
	y, mo, d := now.Date()
	var best Window
	bestDist := time.Duration(-1)
	for _, offset := range []int{-1, 0, 1} {
		start := time.Date(y, mo, d+offset, slot.Hour, slot.Minute, 0, 0, now.Location())
		dist := now.Sub(start)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = Window{Start: start, Opens: start.Add(-Tolerance), Closes: start.Add(Tolerance)}
		}
	}
	return best
}

// CanMark reports whether attendance for raw may be marked at now. Slots that
// do not parse are never markable.
func CanMark(raw string, now time.Time) bool {
	slot, err := ParseSlot(raw)
	if err != nil {
		return false
	}
	return For(slot, now).Contains(now)
}
