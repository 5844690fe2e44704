package appointment

import (
	"time"

	"github.com/medibook/medibook/internal/platform/money"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the appointment can still be cancelled.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment is a booking of a patient with a doctor. DoctorName is joined
// from the doctor record and never written.
type Appointment struct {
	ID                 string       `json:"id"`
	PatientName        string       `json:"patientName"`
	PatientID          *string      `json:"patientId,omitempty"`
	PatientEmail       *string      `json:"patientEmail,omitempty"`
	DoctorID           string       `json:"doctorId"`
	DoctorName         string       `json:"doctorName"`
	Specialty          string       `json:"specialty"`
	Date               time.Time    `json:"date"`
	Time               string       `json:"time"`
	Fee                money.Amount `json:"fee"`
	Status             Status       `json:"status"`
	CancellationReason *string      `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// CreateRequest is the booking body. The doctor may be referenced by
// doctorId, doctorRef or doctorEmail.
type CreateRequest struct {
	PatientName  string        `json:"patientName" validate:"required"`
	PatientID    *string       `json:"patientId"`
	PatientEmail *string       `json:"patientEmail" validate:"omitempty,email"`
	DoctorID     string        `json:"doctorId" validate:"required_without_all=DoctorRef DoctorEmail"`
	DoctorRef    string        `json:"doctorRef"`
	DoctorEmail  string        `json:"doctorEmail"`
	Specialty    string        `json:"specialty" validate:"required"`
	Date         string        `json:"date" validate:"required,isodate"`
	Time         string        `json:"time" validate:"required,clock"`
	Fee          *money.Amount `json:"fee" validate:"required"`
}

// DoctorReference returns the first doctor reference supplied.
func (r CreateRequest) DoctorReference() string {
	return firstNonEmpty(r.DoctorID, r.DoctorRef, r.DoctorEmail)
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	PatientName        *string       `json:"patientName"`
	PatientID          *string       `json:"patientId"`
	PatientEmail       *string       `json:"patientEmail"`
	DoctorID           *string       `json:"doctorId"`
	DoctorRef          *string       `json:"doctorRef"`
	DoctorEmail        *string       `json:"doctorEmail"`
	Specialty          *string       `json:"specialty"`
	Date               *string       `json:"date"`
	Time               *string       `json:"time"`
	Fee                *money.Amount `json:"fee"`
	Status             *Status       `json:"status"`
	CancellationReason *string       `json:"cancellationReason"`
}

func (r UpdateRequest) DoctorReference() string {
	return firstNonEmpty(deref(r.DoctorID), deref(r.DoctorRef), deref(r.DoctorEmail))
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type Sort string

const (
	SortCreated Sort = "created"
	SortDate    Sort = "date"
)

type ListFilter struct {
	PatientName string
	PatientID   string
	DoctorID    string
	DoctorEmail string
	Status      Status
	Sort        Sort
	Limit       int
	Offset      int
}

// StatusTotal is one row of the per-status aggregate.
type StatusTotal struct {
	Status Status
	Count  int
	Fees   money.Amount
}

// Summary is the dashboard aggregate for all appointments or one doctor.
type Summary struct {
	DoctorID string         `json:"doctorId,omitempty"`
	Counts   map[Status]int `json:"counts"`
	Total    int            `json:"total"`
	Earnings money.Amount   `json:"earnings"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
