// Package api is the typed client for the eKlinik patient REST API.
// Response shapes are parsed and validated here so the rest of the core
// never handles loosely shaped data.
package api

import (
	"fmt"
	"strings"
	"time"
)

// Time unmarshals the timestamp formats the backend emits: RFC3339 with or
// without offset, and date-hour-minute. Values without an offset are local.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("api: unparseable timestamp %q", s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format("2006-01-02T15:04:05") + `"`), nil
}

// ClinicSummary identifies a clinic in listings and push updates.
type ClinicSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DoctorUser carries the person fields nested under a doctor record.
type DoctorUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Doctor is a bookable physician attached to one clinic.
type Doctor struct {
	DoctorID int64         `json:"doctorId"`
	Title    string        `json:"title"`
	User     DoctorUser    `json:"user"`
	Clinic   ClinicSummary `json:"clinic"`
}

// FullName renders "Title First Last" for display and confirmations.
func (d Doctor) FullName() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", d.Title, d.User.FirstName, d.User.LastName))
}

// SlotStatus is the server-assigned availability of a slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotBooked    SlotStatus = "BOOKED"
)

// Slot is a single bookable time unit offered by a doctor.
type Slot struct {
	ID        int64      `json:"id"`
	StartTime Time       `json:"startTime"`
	Status    SlotStatus `json:"status"`
}

// SlotMap maps a date key (YYYY-MM-DD) to that day's slots, ordered by time.
// It is a transient cache: refetches replace it wholesale.
type SlotMap map[string][]Slot

// AppointmentStatus is server-authoritative; the client never assigns it.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentMissed    AppointmentStatus = "MISSED"
)

// Appointment is one row of the patient's booking history.
type Appointment struct {
	AppointmentID   int64             `json:"appointmentId"`
	DoctorFullName  string            `json:"doctorFullName"`
	ClinicName      string            `json:"clinicName"`
	AppointmentTime Time              `json:"appointmentTime"`
	Status          AppointmentStatus `json:"status"`
}

// MedicalRecord is the doctor's record attached to a completed appointment.
type MedicalRecord struct {
	Diagnosis string `json:"diagnosis"`
	Notes     string `json:"notes,omitempty"`
}

// AppointmentDetails is the detail view: the appointment plus its record.
type AppointmentDetails struct {
	Appointment
	MedicalRecord *MedicalRecord `json:"medicalRecord,omitempty"`
}

// Profile is the authenticated patient's account data.
type Profile struct {
	NationalID  string `json:"nationalId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// RegisterRequest is the new-account payload.
type RegisterRequest struct {
	NationalID  string `json:"nationalId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// BookingResult is the server's response to a booking submission.
type BookingResult struct {
	AppointmentID int64  `json:"appointmentId,omitempty"`
	Message       string `json:"message,omitempty"`
}

type loginRequest struct {
	NationalID string `json:"nationalId"`
	Password   string `json:"password"`
}

type registerEnvelope struct {
	UserRequest RegisterRequest `json:"userRequest"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}
