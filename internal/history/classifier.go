// Package history partitions appointment history into its two display
// groups and decides cancellability. Classification is presentation-only:
// every appointment keeps the record shape the server sent.
package history

import (
	"sort"
	"time"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
)

// Badge is the display annotation for an appointment's status.
type Badge string

const (
	BadgeScheduled Badge = "scheduled"
	BadgeCancelled Badge = "cancelled"
	BadgeCompleted Badge = "completed"
	BadgeMissed    Badge = "missed"
	// BadgeUnknown renders a neutral, non-interactive badge for statuses
	// this client version does not recognize.
	BadgeUnknown Badge = "unknown"
)

// Classified is an appointment with its derived display annotations.
type Classified struct {
	api.Appointment
	Badge       Badge
	Cancellable bool
}

// Partition splits appointments into Upcoming (SCHEDULED and in the future,
// ascending by time) and Past (everything else, most recent first). Every
// appointment lands in exactly one group; unrecognized statuses go to Past
// with a neutral badge instead of failing.
func Partition(appointments []api.Appointment, now time.Time) (upcoming, past []Classified) {
	for _, a := range appointments {
		c := Classified{Appointment: a, Badge: badgeFor(a.Status)}
		if a.Status == api.AppointmentScheduled && a.AppointmentTime.After(now) {
			c.Cancellable = true
			upcoming = append(upcoming, c)
		} else {
			past = append(past, c)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].AppointmentTime.Before(upcoming[j].AppointmentTime.Time)
	})
	sort.SliceStable(past, func(i, j int) bool {
		return past[i].AppointmentTime.After(past[j].AppointmentTime.Time)
	})
	return upcoming, past
}

// IsCancellable reports whether the appointment belongs to Upcoming:
// SCHEDULED and in the future. The server still has the final word; this
// only gates whether the cancel action is offered.
func IsCancellable(a api.Appointment, now time.Time) bool {
	return a.Status == api.AppointmentScheduled && a.AppointmentTime.After(now)
}

func badgeFor(status api.AppointmentStatus) Badge {
	switch status {
	case api.AppointmentScheduled:
		return BadgeScheduled
	case api.AppointmentCancelled:
		return BadgeCancelled
	case api.AppointmentCompleted:
		return BadgeCompleted
	case api.AppointmentMissed:
		return BadgeMissed
	default:
		return BadgeUnknown
	}
}
