package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/domain/doctor"
	"github.com/medibook/medibook/internal/domain/patient"
	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/events"
	"github.com/medibook/medibook/internal/platform/money"
	"github.com/medibook/medibook/internal/platform/notification"
	"github.com/medibook/medibook/internal/platform/validate"
)

const invalidFields = "Invalid Fields"

// DoctorLookup resolves doctor references and the caller's own profile. Every
// method returns an apperr not-found error for unknown doctors.
type DoctorLookup interface {
	Get(ctx context.Context, id string) (*doctor.Doctor, error)
	GetByEmail(ctx context.Context, email string) (*doctor.Doctor, error)
	GetByUserID(ctx context.Context, userID string) (*doctor.Doctor, error)
}

type PatientGetter interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	appts    Repository
	doctors  DoctorLookup
	patients PatientGetter
	notifier Notifier
	events   *events.Emitter
	tx       db.Transactor
	logger   zerolog.Logger
}

func NewService(appts Repository, doctors DoctorLookup, patients PatientGetter, notifier Notifier,
	em *events.Emitter, tx db.Transactor, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{
		appts:    appts,
		doctors:  doctors,
		patients: patients,
		notifier: notifier,
		events:   em,
		tx:       tx,
		logger:   logger,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.DoctorRef = strings.TrimSpace(req.DoctorRef)
	req.DoctorEmail = strings.TrimSpace(req.DoctorEmail)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if msg := checkFee(*req.Fee); msg != "" {
		return nil, apperr.Validation(invalidFields, map[string]string{"fee": msg})
	}

	doc, err := s.resolveDoctor(ctx, req.DoctorReference())
	if err != nil {
		return nil, err
	}

	date, _ := validate.ParseDate(req.Date)
	clock, _ := validate.ParseClock(req.Time)
	a := &Appointment{
		PatientName:  req.PatientName,
		PatientID:    blankToNil(req.PatientID),
		PatientEmail: blankToNil(req.PatientEmail),
		DoctorID:     doc.ID,
		DoctorName:   doc.Name,
		Specialty:    req.Specialty,
		Date:         date,
		Time:         clock,
		Fee:          *req.Fee,
		Status:       StatusPending,
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, mapWriteError("create appointment", err)
	}

	s.events.Emit(ctx, events.AppointmentCreated, a)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, mapReadError("get appointment", err)
	}
	return a, nil
}

// List applies filter. An unknown doctor e-mail yields an empty result.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.Validation(invalidFields, map[string]string{"status": "must be one of: pending confirmed completed cancelled"})
	}
	switch filter.Sort {
	case "":
		filter.Sort = SortCreated
	case SortCreated, SortDate:
	default:
		return nil, 0, apperr.Validation(invalidFields, map[string]string{"sort": "must be one of: created date"})
	}

	appts, total, err := s.appts.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal("list appointments", err)
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return appts, total, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Appointment, error) {
	var (
		updated   *Appointment
		prev      Status
		cancelled bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appts.GetForUpdate(ctx, id)
		if err != nil {
			return mapReadError("get appointment", err)
		}
		prev = a.Status
		if err := s.applyUpdate(ctx, a, req); err != nil {
			return err
		}
		cancelled = prev != a.Status && a.Status == StatusCancelled
		if err := s.appts.Update(ctx, a); err != nil {
			return mapWriteError("update appointment", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if prev != updated.Status {
		s.events.Emit(ctx, statusEvent(updated.Status), updated)
	} else {
		s.events.Emit(ctx, events.AppointmentUpdated, updated)
	}
	if cancelled {
		s.notifyCancelled(ctx, updated)
	}
	return updated, nil
}

func (s *Service) applyUpdate(ctx context.Context, a *Appointment, req UpdateRequest) error {
	invalid := make(map[string]string)

	if req.PatientName != nil {
		if name := strings.TrimSpace(*req.PatientName); name != "" {
			a.PatientName = name
		} else {
			invalid["patientName"] = "must not be empty"
		}
	}
	if req.PatientID != nil {
		a.PatientID = blankToNil(req.PatientID)
	}
	if req.PatientEmail != nil {
		email := blankToNil(req.PatientEmail)
		if email != nil && !validate.Email(*email) {
			invalid["patientEmail"] = "must be a valid email address"
		} else {
			a.PatientEmail = email
		}
	}
	if req.Specialty != nil {
		if sp := strings.TrimSpace(*req.Specialty); sp != "" {
			a.Specialty = sp
		} else {
			invalid["specialty"] = "must not be empty"
		}
	}
	if req.Date != nil {
		date, err := validate.ParseDate(*req.Date)
		if err != nil {
			invalid["date"] = "must be a date (YYYY-MM-DD or RFC 3339)"
		} else {
			a.Date = date
		}
	}
	if req.Time != nil {
		clock, err := validate.ParseClock(*req.Time)
		if err != nil {
			invalid["time"] = "must be a time of day (HH:MM or H:MM AM/PM)"
		} else {
			a.Time = clock
		}
	}
	if req.Fee != nil {
		if msg := checkFee(*req.Fee); msg != "" {
			invalid["fee"] = msg
		} else {
			a.Fee = *req.Fee
		}
	}
	if req.Status != nil && !req.Status.Valid() {
		invalid["status"] = "must be one of: pending confirmed completed cancelled"
	}
	if len(invalid) > 0 {
		return apperr.Validation(invalidFields, invalid)
	}

	if ref := strings.TrimSpace(req.DoctorReference()); ref != "" && ref != a.DoctorID {
		doc, err := s.resolveDoctor(ctx, ref)
		if err != nil {
			return err
		}
		a.DoctorID = doc.ID
		a.DoctorName = doc.Name
	}

	if req.Status != nil && *req.Status != a.Status {
		if !a.Status.CanTransitionTo(*req.Status) {
			return transitionConflict(a.Status, *req.Status)
		}
		a.Status = *req.Status
		if a.Status == StatusCancelled && req.CancellationReason != nil {
			a.CancellationReason = blankToNil(req.CancellationReason)
		}
	}
	return nil
}

// Delete removes the appointment. Deleting an active appointment is a
// cancellation and notifies the patient; the returned notification reports
// the delivery outcome.
func (s *Service) Delete(ctx context.Context, id string) (*notification.Notification, error) {
	var deleted *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appts.GetForUpdate(ctx, id)
		if err != nil {
			return mapReadError("get appointment", err)
		}
		if err := s.appts.Delete(ctx, id); err != nil {
			return mapReadError("delete appointment", err)
		}
		deleted = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, events.AppointmentDeleted, deleted)
	if !deleted.Status.Active() {
		return skipped("appointment was not active"), nil
	}
	return s.notifyCancelled(ctx, deleted), nil
}

func (s *Service) Confirm(ctx context.Context, id string) (*Appointment, error) {
	a, err := s.transition(ctx, id, StatusConfirmed, nil)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notification.TemplateAppointmentConfirmed, a, TemplateData(a))
	return a, nil
}

func (s *Service) Complete(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, nil)
}

// Cancel moves the appointment to cancelled and notifies the patient.
// Notification failure never undoes the cancellation.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*Appointment, *notification.Notification, error) {
	a, err := s.transition(ctx, id, StatusCancelled, blankToNil(&reason))
	if err != nil {
		return nil, nil, err
	}
	return a, s.notifyCancelled(ctx, a), nil
}

func (s *Service) transition(ctx context.Context, id string, to Status, reason *string) (*Appointment, error) {
	var a *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.appts.GetForUpdate(ctx, id)
		if err != nil {
			return mapReadError("get appointment", err)
		}
		if !cur.Status.CanTransitionTo(to) {
			return transitionConflict(cur.Status, to)
		}
		cur.Status = to
		if reason != nil {
			cur.CancellationReason = reason
		}
		if err := s.appts.Update(ctx, cur); err != nil {
			return mapWriteError("update appointment status", err)
		}
		a = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, statusEvent(to), a)
	return a, nil
}

// Summary aggregates counts per status and the earnings from completed
// appointments, optionally for a single doctor.
func (s *Service) Summary(ctx context.Context, doctorID string) (*Summary, error) {
	totals, err := s.appts.Summary(ctx, doctorID)
	if err != nil {
		return nil, apperr.Internal("appointment summary", err)
	}
	sum := &Summary{DoctorID: doctorID, Counts: make(map[Status]int, len(AllStatuses))}
	for _, st := range AllStatuses {
		sum.Counts[st] = 0
	}
	for _, t := range totals {
		sum.Counts[t.Status] += t.Count
		sum.Total += t.Count
		if t.Status == StatusCompleted {
			sum.Earnings = sum.Earnings.Add(t.Fees)
		}
	}
	return sum, nil
}

// resolveDoctor accepts a doctor id or, when ref contains '@', an e-mail.
func (s *Service) resolveDoctor(ctx context.Context, ref string) (*doctor.Doctor, error) {
	var (
		doc *doctor.Doctor
		err error
	)
	if strings.Contains(ref, "@") {
		doc, err = s.doctors.GetByEmail(ctx, ref)
	} else {
		doc, err = s.doctors.Get(ctx, ref)
	}
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Doctor not found")
		}
		return nil, err
	}
	return doc, nil
}

func (s *Service) notifyCancelled(ctx context.Context, a *Appointment) *notification.Notification {
	data := TemplateData(a)
	if a.CancellationReason != nil {
		data["reason_line"] = "\n\nReason: " + *a.CancellationReason
	}
	return s.notify(ctx, notification.TemplateAppointmentCancelled, a, data)
}

// notify delivers best-effort; failures are logged and reported, never returned.
func (s *Service) notify(ctx context.Context, templateID string, a *Appointment, data map[string]string) *notification.Notification {
	if s.notifier == nil {
		return skipped("notifications disabled")
	}
	n, err := s.notifier.SendFromTemplate(ctx, templateID, data, s.Recipient(ctx, a))
	if err != nil {
		level := s.logger.Warn()
		if errors.Is(err, notification.ErrNoRecipient) {
			level = s.logger.Info()
		}
		level.Err(err).
			Str("appointment_id", a.ID).
			Str("template", templateID).
			Msg("appointment notification not delivered")
	}
	return n
}

// Recipient returns the patient's e-mail for a, preferring the address given
// at booking over the linked patient record. It is empty when neither exists.
func (s *Service) Recipient(ctx context.Context, a *Appointment) string {
	if a.PatientEmail != nil && *a.PatientEmail != "" {
		return *a.PatientEmail
	}
	if a.PatientID == nil || s.patients == nil {
		return ""
	}
	p, err := s.patients.Get(ctx, *a.PatientID)
	if err != nil {
		return ""
	}
	return p.Email
}

// TemplateData returns the notification placeholders for a.
func TemplateData(a *Appointment) map[string]string {
	return map[string]string{
		"patient_name": a.PatientName,
		"doctor_name":  a.DoctorName,
		"specialty":    a.Specialty,
		"date":         a.Date.Format(validate.DateLayout),
		"time":         a.Time,
		"amount":       a.Fee.String(),
	}
}

func skipped(reason string) *notification.Notification {
	return &notification.Notification{
		Status:    notification.StatusSkipped,
		Error:     reason,
		CreatedAt: time.Now().UTC(),
	}
}

func statusEvent(s Status) string {
	switch s {
	case StatusConfirmed:
		return events.AppointmentConfirmed
	case StatusCompleted:
		return events.AppointmentCompleted
	case StatusCancelled:
		return events.AppointmentCancelled
	default:
		return events.AppointmentUpdated
	}
}

func transitionConflict(from, to Status) error {
	return apperr.Conflict("Cannot change appointment status from " + string(from) + " to " + string(to))
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func mapReadError(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Appointment not found")
	}
	return apperr.Internal(op, err)
}

// checkFee returns why fee is unacceptable, or "".
func checkFee(fee money.Amount) string {
	switch {
	case !fee.IsPositive():
		return "must be greater than 0"
	case !fee.Storable():
		return "must be less than " + money.Limit.String()
	}
	return ""
}

func mapWriteError(op string, err error) error {
	if errors.Is(err, db.ErrOutOfRange) {
		return apperr.Validation(invalidFields, map[string]string{"fee": "must be less than " + money.Limit.String()})
	}
	if errors.Is(err, db.ErrForeignKey) {
		if db.ConstraintName(err) == "appointments_patient_id_fkey" {
			return apperr.NotFound("Patient not found")
		}
		return apperr.NotFound("Doctor not found")
	}
	return mapReadError(op, err)
}
