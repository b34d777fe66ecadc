package schedule

import (
	"testing"
	"time"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
)

func at(t *testing.T, value string) api.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02T15:04", value, time.Local)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return api.Time{Time: parsed}
}

func slot(t *testing.T, id int64, start string, status api.SlotStatus) api.Slot {
	t.Helper()
	return api.Slot{ID: id, StartTime: at(t, start), Status: status}
}

func TestCalendarFiltersSortsAndTruncates(t *testing.T) {
	slots := api.SlotMap{
		"2026-03-09": {slot(t, 1, "2026-03-09T09:00", api.SlotAvailable)}, // yesterday
		"2026-03-15": {slot(t, 2, "2026-03-15T09:00", api.SlotAvailable)},
		"2026-03-11": {slot(t, 3, "2026-03-11T09:00", api.SlotAvailable)},
		"2026-03-10": {slot(t, 4, "2026-03-10T09:00", api.SlotAvailable)}, // today
		"2026-03-12": {slot(t, 5, "2026-03-12T09:00", api.SlotAvailable)},
		"2026-03-13": {slot(t, 6, "2026-03-13T09:00", api.SlotAvailable)},
		"2026-03-14": {slot(t, 7, "2026-03-14T09:00", api.SlotAvailable)},
		"2026-03-16": {slot(t, 8, "2026-03-16T09:00", api.SlotAvailable)},
		"2026-03-17": {slot(t, 9, "2026-03-17T09:00", api.SlotAvailable)},
		"not-a-date": {slot(t, 10, "2026-03-12T10:00", api.SlotAvailable)},
	}
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)

	got := Calendar(slots, now, Options{LookaheadDays: 7})

	want := []string{"2026-03-10", "2026-03-11", "2026-03-12", "2026-03-13", "2026-03-14", "2026-03-15", "2026-03-16"}
	if len(got) != len(want) {
		t.Fatalf("calendar length: got %d want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calendar[%d]: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestCalendarCutoffMovesStartToTomorrow(t *testing.T) {
	slots := api.SlotMap{
		"2026-03-10": {slot(t, 1, "2026-03-10T18:30", api.SlotAvailable)},
		"2026-03-11": {slot(t, 2, "2026-03-11T09:00", api.SlotAvailable)},
	}

	beforeCutoff := time.Date(2026, 3, 10, 16, 59, 0, 0, time.Local)
	if got := Calendar(slots, beforeCutoff, Options{}); len(got) != 2 || got[0] != "2026-03-10" {
		t.Fatalf("before cutoff today must be offered, got %v", got)
	}

	afterCutoff := time.Date(2026, 3, 10, 17, 0, 0, 0, time.Local)
	if got := Calendar(slots, afterCutoff, Options{}); len(got) != 1 || got[0] != "2026-03-11" {
		t.Fatalf("after cutoff calendar must start tomorrow, got %v", got)
	}
}

func TestCalendarEmptySlotMap(t *testing.T) {
	got := Calendar(api.SlotMap{}, time.Now(), Options{})
	if len(got) != 0 {
		t.Fatalf("empty slot map must yield empty calendar, got %v", got)
	}
}

func TestDaySlotsAnnotation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	slots := api.SlotMap{
		"2026-03-10": {
			slot(t, 3, "2026-03-10T15:00", api.SlotBooked),
			slot(t, 1, "2026-03-10T09:00", api.SlotAvailable), // past
			slot(t, 2, "2026-03-10T14:00", api.SlotAvailable),
		},
	}

	got := DaySlots(slots, "2026-03-10", now)
	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}

	// Ordered by start time.
	if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Fatalf("slots not ordered by time: %+v", got)
	}

	if !got[0].IsPast || got[0].Selectable {
		t.Fatalf("past slot must not be selectable: %+v", got[0])
	}
	if !got[1].Selectable || got[1].IsPast || got[1].IsBooked {
		t.Fatalf("future available slot must be selectable: %+v", got[1])
	}
	if !got[2].IsBooked || got[2].Selectable {
		t.Fatalf("booked slot must not be selectable: %+v", got[2])
	}

	for _, s := range got {
		if s.Selectable != (!s.IsPast && !s.IsBooked) {
			t.Fatalf("selectable flag inconsistent with derived flags: %+v", s)
		}
	}
}

func TestSpecScenarioSingleFutureSlot(t *testing.T) {
	slots := api.SlotMap{
		"2024-01-10": {slot(t, 1, "2024-01-10T09:00", api.SlotAvailable)},
	}
	now := time.Date(2024, 1, 9, 10, 0, 0, 0, time.Local)

	calendar := Calendar(slots, now, Options{LookaheadDays: 7})
	if len(calendar) != 1 || calendar[0] != "2024-01-10" {
		t.Fatalf("expected calendar [2024-01-10], got %v", calendar)
	}

	day := DaySlots(slots, "2024-01-10", now)
	if len(day) != 1 || !day[0].Selectable {
		t.Fatalf("slot 1 must be selectable, got %+v", day)
	}
}

func TestValidateSelection(t *testing.T) {
	calendar := []string{"2026-03-11", "2026-03-12"}

	if kept, ok := ValidateSelection(calendar, "2026-03-12"); !ok || kept != "2026-03-12" {
		t.Fatalf("present date must survive, got %q %v", kept, ok)
	}
	if kept, ok := ValidateSelection(calendar, "2026-03-10"); ok || kept != "" {
		t.Fatalf("vanished date must be invalidated, got %q %v", kept, ok)
	}
}

func TestFetchRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local)
	start, end := FetchRange(now, 30)

	if start.Format(DateKeyLayout) != "2026-03-10" {
		t.Fatalf("range start: %s", start)
	}
	if end.Format(DateKeyLayout) != "2026-04-09" {
		t.Fatalf("range end: %s", end)
	}
}
