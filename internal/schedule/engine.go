// Package schedule derives the bookable calendar and annotated day slots
// from a raw per-day slot map. Everything here is a pure function of its
// inputs; the slot map itself stays an untouched server-owned cache.
package schedule

import (
	"sort"
	"time"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
)

// DateKeyLayout is the YYYY-MM-DD key format used by the slot map.
const DateKeyLayout = "2006-01-02"

const (
	defaultLookaheadDays = 7
	defaultCutoffHour    = 17
)

// Options tune calendar derivation.
type Options struct {
	// LookaheadDays caps how many dates the calendar shows. Zero means 7.
	LookaheadDays int
	// CutoffHour is the end-of-day hour after which today is no longer
	// offered. Zero means 17 (5 PM).
	CutoffHour int
}

func (o Options) withDefaults() Options {
	if o.LookaheadDays <= 0 {
		o.LookaheadDays = defaultLookaheadDays
	}
	if o.CutoffHour <= 0 {
		o.CutoffHour = defaultCutoffHour
	}
	return o
}

// Calendar returns the bookable calendar: the sorted date keys of slots,
// filtered to those at or after the calendar start and truncated to the
// lookahead window. An empty slot map yields an empty calendar.
func Calendar(slots api.SlotMap, now time.Time, opts Options) []string {
	opts = opts.withDefaults()
	startKey := calendarStart(now, opts.CutoffHour).Format(DateKeyLayout)

	keys := make([]string, 0, len(slots))
	for key := range slots {
		if _, err := time.Parse(DateKeyLayout, key); err != nil {
			continue
		}
		if key >= startKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if len(keys) > opts.LookaheadDays {
		keys = keys[:opts.LookaheadDays]
	}
	return keys
}

// calendarStart is today at midnight, or tomorrow once now has passed the
// end-of-day cutoff.
func calendarStart(now time.Time, cutoffHour int) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() >= cutoffHour {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// AnnotatedSlot is a slot with its display flags derived against now.
type AnnotatedSlot struct {
	api.Slot
	IsPast     bool
	IsBooked   bool
	Selectable bool
}

// DaySlots returns the selected date's slots ordered by start time and
// annotated for display. A slot is selectable iff it is neither past nor
// booked.
func DaySlots(slots api.SlotMap, date string, now time.Time) []AnnotatedSlot {
	day := slots[date]
	out := make([]AnnotatedSlot, 0, len(day))
	for _, s := range day {
		isPast := s.StartTime.Before(now)
		isBooked := s.Status == api.SlotBooked
		out = append(out, AnnotatedSlot{
			Slot:       s,
			IsPast:     isPast,
			IsBooked:   isBooked,
			Selectable: !isPast && !isBooked,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime.Time)
	})
	return out
}

// ValidateSelection keeps a previously selected date only while it is still
// present in the recomputed calendar; otherwise the selection is invalidated
// rather than silently retained.
func ValidateSelection(calendar []string, selected string) (string, bool) {
	for _, key := range calendar {
		if key == selected {
			return selected, true
		}
	}
	return "", false
}

// FetchRange is the [today, today+days] window the slot fetch requests.
func FetchRange(now time.Time, days int) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, days)
}
