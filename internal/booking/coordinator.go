// Package booking orchestrates one booking or cancellation attempt at a
// time: slot selection, the confirmation gate, submission, and the refetch
// that reconciles local caches with the server afterwards.
package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
	"github.com/serhatkrkmz54/eklinik-v2/internal/schedule"
	"github.com/serhatkrkmz54/eklinik-v2/pkg/logging"
)

// Phase is the coordinator's position in one attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSelecting  Phase = "selecting"
	PhaseConfirming Phase = "confirming"
	PhaseSubmitting Phase = "submitting"
)

var (
	// ErrSlotNotSelectable rejects selection of past or booked slots.
	ErrSlotNotSelectable = errors.New("booking: slot is not selectable")
	// ErrNoSelection means confirmation was requested with nothing selected.
	ErrNoSelection = errors.New("booking: nothing selected")
	// ErrNotConfirming means submission was attempted before the
	// confirmation gate.
	ErrNotConfirming = errors.New("booking: confirmation required before submission")
	// ErrSubmissionInFlight makes a second submit during Submitting a no-op.
	ErrSubmissionInFlight = errors.New("booking: submission already in flight")
)

// SubmitAPI is the slice of the API client the coordinator submits through.
type SubmitAPI interface {
	BookSlot(ctx context.Context, slotID int64) (*api.BookingResult, error)
	CancelAppointment(ctx context.Context, appointmentID int64) error
}

// Refresher refetches a server-owned list after a mutating action resolves.
// The host wires these to full SlotMap / history refetches; the coordinator
// never patches either list locally.
type Refresher func(ctx context.Context) error

// Confirmation is what the UI must show before any network call is made.
type Confirmation struct {
	DoctorFullName string
	ClinicName     string
	StartTime      time.Time
	SlotID         int64
	// AppointmentID is set for cancellations instead of SlotID.
	AppointmentID int64
	// Destructive marks the cancellation gate.
	Destructive bool
}

// Outcome reports how a submission resolved. Message is user-facing: the
// server's own message when it sent one, else a generic fallback.
type Outcome struct {
	Success bool
	Message string
}

type attemptKind int

const (
	kindNone attemptKind = iota
	kindBook
	kindCancel
)

// Coordinator runs the per-attempt state machine. One instance per screen;
// the busy flag enforces the single in-flight submission rule.
type Coordinator struct {
	client         SubmitAPI
	refreshSlots   Refresher
	refreshHistory Refresher
	logger         *logging.Logger

	mu        sync.Mutex
	phase     Phase
	kind      attemptKind
	selection Confirmation
}

// NewCoordinator wires the coordinator to the API and the two refetchers.
func NewCoordinator(client SubmitAPI, refreshSlots, refreshHistory Refresher, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		client:         client,
		refreshSlots:   refreshSlots,
		refreshHistory: refreshHistory,
		logger:         logger,
		phase:          PhaseIdle,
	}
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SelectSlot starts a booking attempt for a selectable slot. Reselection is
// allowed any time before submission; a submit in flight rejects it.
func (c *Coordinator) SelectSlot(slot schedule.AnnotatedSlot, doctor api.Doctor) error {
	if !slot.Selectable {
		return ErrSlotNotSelectable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitting {
		return ErrSubmissionInFlight
	}
	c.phase = PhaseSelecting
	c.kind = kindBook
	c.selection = Confirmation{
		DoctorFullName: doctor.FullName(),
		ClinicName:     doctor.Clinic.Name,
		StartTime:      slot.StartTime.Time,
		SlotID:         slot.ID,
	}
	return nil
}

// RequestConfirmation moves to the confirming gate and returns the exact
// doctor/clinic/time being booked, sourced from the held selection.
func (c *Coordinator) RequestConfirmation() (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseSelecting || c.kind != kindBook {
		return Confirmation{}, ErrNoSelection
	}
	c.phase = PhaseConfirming
	return c.selection, nil
}

// ConfirmBooking submits the selected slot. A second call while a submit is
// in flight is a guarded no-op. Success and failure both force a full slot
// refetch before control returns; the selection is always cleared.
func (c *Coordinator) ConfirmBooking(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return Outcome{}, ErrSubmissionInFlight
	}
	if c.phase != PhaseConfirming || c.kind != kindBook {
		c.mu.Unlock()
		return Outcome{}, ErrNotConfirming
	}
	slotID := c.selection.SlotID
	c.phase = PhaseSubmitting
	c.mu.Unlock()

	result, err := c.client.BookSlot(ctx, slotID)

	// Authoritative availability always comes from a fresh fetch, even when
	// the booking failed (the slot may have been taken by a race).
	c.refetch(ctx, c.refreshSlots, "slots")
	c.reset()

	if err != nil {
		c.logger.Warn("booking: submission failed", "slot_id", slotID, "error", err)
		return Outcome{Success: false, Message: userMessage(err)}, err
	}

	c.logger.Info("booking: confirmed by server", "slot_id", slotID)
	message := ""
	if result != nil {
		message = result.Message
	}
	return Outcome{Success: true, Message: message}, nil
}

// RequestCancel opens the destructive-confirmation gate for an appointment.
func (c *Coordinator) RequestCancel(a api.Appointment) (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitting {
		return Confirmation{}, ErrSubmissionInFlight
	}
	c.phase = PhaseConfirming
	c.kind = kindCancel
	c.selection = Confirmation{
		DoctorFullName: a.DoctorFullName,
		ClinicName:     a.ClinicName,
		StartTime:      a.AppointmentTime.Time,
		AppointmentID:  a.AppointmentID,
		Destructive:    true,
	}
	return c.selection, nil
}

// ConfirmCancel submits the cancellation and forces a history refetch
// regardless of outcome: what the appointment becomes is server-decided.
func (c *Coordinator) ConfirmCancel(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return Outcome{}, ErrSubmissionInFlight
	}
	if c.phase != PhaseConfirming || c.kind != kindCancel {
		c.mu.Unlock()
		return Outcome{}, ErrNotConfirming
	}
	appointmentID := c.selection.AppointmentID
	c.phase = PhaseSubmitting
	c.mu.Unlock()

	err := c.client.CancelAppointment(ctx, appointmentID)

	c.refetch(ctx, c.refreshHistory, "history")
	c.reset()

	if err != nil {
		c.logger.Warn("booking: cancellation failed", "appointment_id", appointmentID, "error", err)
		return Outcome{Success: false, Message: userMessage(err)}, err
	}

	c.logger.Info("booking: cancellation confirmed by server", "appointment_id", appointmentID)
	return Outcome{Success: true}, nil
}

// Abandon clears any pending selection, e.g. when the user navigates away.
// A submit in flight is left to resolve; its result lands in a refetch.
func (c *Coordinator) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitting {
		return
	}
	c.phase = PhaseIdle
	c.kind = kindNone
	c.selection = Confirmation{}
}

func (c *Coordinator) refetch(ctx context.Context, refresh Refresher, name string) {
	if refresh == nil {
		return
	}
	if err := refresh(ctx); err != nil {
		c.logger.Warn("booking: post-submit refetch failed", "list", name, "error", err)
	}
}

func (c *Coordinator) reset() {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.kind = kindNone
	c.selection = Confirmation{}
	c.mu.Unlock()
}

func userMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "Beklenmeyen bir hata oluştu."
}
