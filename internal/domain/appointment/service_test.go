package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/domain/doctor"
	"github.com/medibook/medibook/internal/domain/patient"
	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/events"
	"github.com/medibook/medibook/internal/platform/money"
	"github.com/medibook/medibook/internal/platform/notification"
)

// -- Mock Appointment Repository --

type mockApptRepo struct {
	appts   map[string]*Appointment
	doctors map[string]*doctor.Doctor
	seq     int
}

func newMockApptRepo(doctors map[string]*doctor.Doctor) *mockApptRepo {
	return &mockApptRepo{appts: make(map[string]*Appointment), doctors: doctors}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	if _, ok := m.doctors[a.DoctorID]; !ok {
		return &db.ConstraintError{Kind: db.ErrForeignKey, Constraint: "appointments_doctor_id_fkey"}
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	// Strictly increasing timestamps keep created-order deterministic.
	m.seq++
	a.CreatedAt = time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC)
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id string) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *a
	cp.DoctorName = m.doctors[a.DoctorID].Name
	return &cp, nil
}

func (m *mockApptRepo) GetForUpdate(ctx context.Context, id string) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	existing, ok := m.appts[a.ID]
	if !ok {
		return db.ErrNotFound
	}
	if _, ok := m.doctors[a.DoctorID]; !ok {
		return &db.ConstraintError{Kind: db.ErrForeignKey, Constraint: "appointments_doctor_id_fkey"}
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.appts[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockApptRepo) List(_ context.Context, f ListFilter) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		doc := m.doctors[a.DoctorID]
		if f.PatientName != "" && !strings.EqualFold(a.PatientName, f.PatientName) {
			continue
		}
		if f.PatientID != "" && (a.PatientID == nil || *a.PatientID != f.PatientID) {
			continue
		}
		if f.DoctorID != "" && a.DoctorID != f.DoctorID {
			continue
		}
		if f.DoctorEmail != "" && !strings.EqualFold(doc.Email, f.DoctorEmail) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		cp := *a
		cp.DoctorName = doc.Name
		result = append(result, &cp)
	}
	if f.Sort == SortDate {
		sort.Slice(result, func(i, j int) bool {
			if !result[i].Date.Equal(result[j].Date) {
				return result[i].Date.Before(result[j].Date)
			}
			return result[i].Time < result[j].Time
		})
	} else {
		sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	}
	total := len(result)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit == 0 || end > total {
		end = total
	}
	return result[f.Offset:end], total, nil
}

func (m *mockApptRepo) Summary(_ context.Context, doctorID string) ([]StatusTotal, error) {
	byStatus := make(map[Status]*StatusTotal)
	for _, a := range m.appts {
		if doctorID != "" && a.DoctorID != doctorID {
			continue
		}
		st, ok := byStatus[a.Status]
		if !ok {
			st = &StatusTotal{Status: a.Status}
			byStatus[a.Status] = st
		}
		st.Count++
		st.Fees = st.Fees.Add(a.Fee)
	}
	var totals []StatusTotal
	for _, st := range byStatus {
		totals = append(totals, *st)
	}
	return totals, nil
}

// -- Mock Lookups --

type mockDoctors map[string]*doctor.Doctor

func (m mockDoctors) Get(_ context.Context, id string) (*doctor.Doctor, error) {
	if d, ok := m[id]; ok {
		return d, nil
	}
	return nil, apperr.NotFound("Doctor not found")
}

func (m mockDoctors) GetByEmail(_ context.Context, email string) (*doctor.Doctor, error) {
	for _, d := range m {
		if strings.EqualFold(d.Email, email) {
			return d, nil
		}
	}
	return nil, apperr.NotFound("Doctor not found")
}

func (m mockDoctors) GetByUserID(_ context.Context, userID string) (*doctor.Doctor, error) {
	for _, d := range m {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, apperr.NotFound("Doctor not found")
}

type mockPatients map[string]*patient.Patient

func (m mockPatients) Get(_ context.Context, id string) (*patient.Patient, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("Patient not found")
}

type testEnv struct {
	svc    *Service
	repo   *mockApptRepo
	mail   *notification.MockEmailSender
	events *events.Recorder
}

func newTestEnv() *testEnv {
	doctors := mockDoctors{
		"dr-123": {ID: "dr-123", Name: "Dr Smile", Email: "smile@clinic.test", Specialty: "Dentist", UserID: "user-smile"},
		"dr-456": {ID: "dr-456", Name: "Dr Heart", Email: "heart@clinic.test", Specialty: "Cardiology", UserID: "user-heart"},
	}
	patients := mockPatients{
		"pat-1": {ID: "pat-1", Name: "John Doe", Email: "john@example.com"},
	}
	repo := newMockApptRepo(doctors)
	mail := &notification.MockEmailSender{}
	rec := &events.Recorder{}
	svc := NewService(repo, doctors, patients,
		notification.NewManager(mail, nil),
		events.NewEmitter(rec, zerolog.Nop()),
		db.NoTx{}, zerolog.Nop())
	return &testEnv{svc: svc, repo: repo, mail: mail, events: rec}
}

func fee(s string) *money.Amount {
	a := money.MustParse(s)
	return &a
}

func strPtr(s string) *string { return &s }

func bookingRequest() CreateRequest {
	return CreateRequest{
		PatientName: "John Doe",
		DoctorRef:   "dr-123",
		Specialty:   "Dentist",
		Date:        "2025-03-01",
		Time:        "10:00",
		Fee:         fee("50"),
	}
}

func TestService_Create(t *testing.T) {
	env := newTestEnv()
	a, err := env.svc.Create(context.Background(), bookingRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Error("expected generated id and createdAt")
	}
	if a.DoctorID != "dr-123" || a.DoctorName != "Dr Smile" {
		t.Errorf("expected canonical doctor dr-123, got %s (%s)", a.DoctorID, a.DoctorName)
	}
	if got := a.Date.Format("2006-01-02"); got != "2025-03-01" {
		t.Errorf("expected calendar date 2025-03-01, got %s", got)
	}
	if a.Status != StatusPending {
		t.Errorf("expected pending, got %s", a.Status)
	}
	if a.Fee.String() != "50" {
		t.Errorf("expected fee 50, got %s", a.Fee)
	}
	if keys := env.events.Keys(); len(keys) != 1 || keys[0] != events.AppointmentCreated {
		t.Errorf("expected appointment.created, got %v", keys)
	}
}

func TestService_Create_DoctorByEmail(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.DoctorRef = ""
	req.DoctorEmail = "HEART@clinic.test"
	a, err := env.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DoctorID != "dr-456" {
		t.Errorf("expected dr-456, got %s", a.DoctorID)
	}
}

func TestService_Create_RefContainingAtIsEmail(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.DoctorRef = ""
	req.DoctorID = "smile@clinic.test"
	a, err := env.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DoctorID != "dr-123" {
		t.Errorf("expected dr-123, got %s", a.DoctorID)
	}
}

func TestService_Create_NormalisesTimeAndRFC3339Date(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.Date = "2025-03-01T00:00:00Z"
	req.Time = "2:30 pm"
	a, err := env.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Time != "14:30" {
		t.Errorf("expected 14:30, got %s", a.Time)
	}
	if got := a.Date.Format("2006-01-02"); got != "2025-03-01" {
		t.Errorf("expected 2025-03-01, got %s", got)
	}
}

func TestService_OffsetDateKeepsCalendarDay(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.Date = "2025-03-01T00:30:00+07:00"
	a, err := env.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !a.Date.Equal(want) {
		t.Errorf("expected %v, got %v", want, a.Date)
	}

	updated, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{Date: strPtr("2025-04-10T23:45:00-05:00")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := updated.Date.UTC().Format("2006-01-02"); got != "2025-04-10" {
		t.Errorf("expected 2025-04-10, got %s", got)
	}
}

func TestService_Create_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		missing string
	}{
		{"doctor reference", func(r *CreateRequest) { r.DoctorRef = "" }, "doctorId"},
		{"patient name", func(r *CreateRequest) { r.PatientName = "  " }, "patientName"},
		{"specialty", func(r *CreateRequest) { r.Specialty = "" }, "specialty"},
		{"date", func(r *CreateRequest) { r.Date = "" }, "date"},
		{"time", func(r *CreateRequest) { r.Time = "" }, "time"},
		{"fee", func(r *CreateRequest) { r.Fee = nil }, "fee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			req := bookingRequest()
			tt.mutate(&req)

			_, err := env.svc.Create(context.Background(), req)
			ae, ok := err.(*apperr.Error)
			if !ok || ae.Kind != apperr.KindValidation || ae.Message != "Missing Fields" {
				t.Fatalf("expected Missing Fields, got %v", err)
			}
			details, _ := ae.Details.([]string)
			if len(details) != 1 || details[0] != tt.missing {
				t.Errorf("expected [%s], got %v", tt.missing, ae.Details)
			}
			if len(env.repo.appts) != 0 {
				t.Error("expected nothing persisted")
			}
		})
	}
}

func TestService_Create_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"zero fee", func(r *CreateRequest) { r.Fee = fee("0") }, "fee"},
		{"negative fee", func(r *CreateRequest) { r.Fee = fee("-10") }, "fee"},
		{"fee beyond storage", func(r *CreateRequest) { r.Fee = fee("10000000000") }, "fee"},
		{"fee rounding up to limit", func(r *CreateRequest) { r.Fee = fee("9999999999.999") }, "fee"},
		{"bad date", func(r *CreateRequest) { r.Date = "March 1st" }, "date"},
		{"bad time", func(r *CreateRequest) { r.Time = "25:99" }, "time"},
		{"bad patient email", func(r *CreateRequest) { r.PatientEmail = strPtr("nope") }, "patientEmail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			req := bookingRequest()
			tt.mutate(&req)

			_, err := env.svc.Create(context.Background(), req)
			ae, ok := err.(*apperr.Error)
			if !ok || ae.Kind != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			details, _ := ae.Details.(map[string]string)
			if _, ok := details[tt.field]; !ok {
				t.Errorf("expected %s in details, got %v", tt.field, ae.Details)
			}
		})
	}
}

func TestService_Create_UnknownDoctor(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.DoctorRef = "dr-999"

	_, err := env.svc.Create(context.Background(), req)
	ae, ok := err.(*apperr.Error)
	if !ok || ae.Kind != apperr.KindNotFound || ae.Message != "Doctor not found" {
		t.Errorf("expected Doctor not found, got %v", err)
	}
}

func TestService_GetUnknown(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.Get(context.Background(), "missing"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_List_FilterByDoctor(t *testing.T) {
	env := newTestEnv()
	env.svc.Create(context.Background(), bookingRequest())
	other := bookingRequest()
	other.DoctorRef = "dr-456"
	env.svc.Create(context.Background(), other)

	appts, total, err := env.svc.List(context.Background(), ListFilter{DoctorID: "dr-456", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(appts) != 1 || appts[0].DoctorID != "dr-456" {
		t.Errorf("expected one dr-456 appointment, got %v", appts)
	}

	appts, _, err = env.svc.List(context.Background(), ListFilter{DoctorID: "dr-none", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appts == nil || len(appts) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", appts)
	}
}

func TestService_List_UnknownDoctorEmailIsEmpty(t *testing.T) {
	env := newTestEnv()
	env.svc.Create(context.Background(), bookingRequest())

	appts, _, err := env.svc.List(context.Background(), ListFilter{DoctorEmail: "nobody@clinic.test", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appts) != 0 {
		t.Errorf("expected empty list, got %d", len(appts))
	}
}

func TestService_List_Sorting(t *testing.T) {
	env := newTestEnv()
	first := bookingRequest()
	first.Date = "2025-03-05"
	env.svc.Create(context.Background(), first)
	second := bookingRequest()
	second.Date = "2025-03-02"
	env.svc.Create(context.Background(), second)

	byCreated, _, _ := env.svc.List(context.Background(), ListFilter{Limit: 10})
	if byCreated[0].Date.Day() != 2 {
		t.Errorf("expected newest booking first, got %s", byCreated[0].Date)
	}

	byDate, _, _ := env.svc.List(context.Background(), ListFilter{Sort: SortDate, Limit: 10})
	if byDate[0].Date.Day() != 2 || byDate[1].Date.Day() != 5 {
		t.Errorf("expected ascending dates, got %s, %s", byDate[0].Date, byDate[1].Date)
	}
}

func TestService_List_InvalidParams(t *testing.T) {
	env := newTestEnv()
	if _, _, err := env.svc.List(context.Background(), ListFilter{Status: "lost"}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error for status, got %v", err)
	}
	if _, _, err := env.svc.List(context.Background(), ListFilter{Sort: "random"}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error for sort, got %v", err)
	}
}

func TestService_Update_Partial(t *testing.T) {
	env := newTestEnv()
	a, _ := env.svc.Create(context.Background(), bookingRequest())

	updated, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{
		Date: strPtr("2025-04-10"),
		Fee:  fee("75.5"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PatientName != "John Doe" || updated.Time != "10:00" {
		t.Errorf("expected untouched fields preserved, got %+v", updated)
	}
	if updated.Date.Format("2006-01-02") != "2025-04-10" || updated.Fee.String() != "75.5" {
		t.Errorf("expected date and fee updated, got %s %s", updated.Date, updated.Fee)
	}
}

func TestService_Update_ChangeDoctor(t *testing.T) {
	env := newTestEnv()
	a, _ := env.svc.Create(context.Background(), bookingRequest())

	updated, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{DoctorEmail: strPtr("heart@clinic.test")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DoctorID != "dr-456" || updated.DoctorName != "Dr Heart" {
		t.Errorf("expected dr-456, got %s", updated.DoctorID)
	}

	if _, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{DoctorID: strPtr("dr-999")}); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected doctor not found, got %v", err)
	}
}

func TestService_Update_Invalid(t *testing.T) {
	env := newTestEnv()
	a, _ := env.svc.Create(context.Background(), bookingRequest())

	_, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{Fee: fee("0"), Date: strPtr("tomorrow")})
	ae, ok := err.(*apperr.Error)
	if !ok || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details := ae.Details.(map[string]string)
	if _, ok := details["fee"]; !ok {
		t.Error("expected fee in details")
	}
	if _, ok := details["date"]; !ok {
		t.Error("expected date in details")
	}
}

func TestService_Update_RejectsOversizedFeeAndBadEmail(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.PatientEmail = strPtr("john@example.com")
	a, _ := env.svc.Create(context.Background(), req)

	_, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{
		Fee:          fee("10000000000.00"),
		PatientEmail: strPtr("not-an-email"),
	})
	ae, ok := err.(*apperr.Error)
	if !ok || ae.Kind != apperr.KindValidation || ae.Message != "Invalid Fields" {
		t.Fatalf("expected Invalid Fields, got %v", err)
	}
	details := ae.Details.(map[string]string)
	if details["fee"] != "must be less than 10000000000" {
		t.Errorf("unexpected fee detail %q", details["fee"])
	}
	if _, ok := details["patientEmail"]; !ok {
		t.Error("expected patientEmail in details")
	}

	got, _ := env.svc.Get(context.Background(), a.ID)
	if got.Fee.String() != "50" || got.PatientEmail == nil || *got.PatientEmail != "john@example.com" {
		t.Errorf("expected appointment untouched, got fee %s email %v", got.Fee, got.PatientEmail)
	}

	updated, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{
		Fee:          fee("9999999999.99"),
		PatientEmail: strPtr("  "),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Fee.String() != "9999999999.99" || updated.PatientEmail != nil {
		t.Errorf("expected largest fee kept and email cleared, got %s %v", updated.Fee, updated.PatientEmail)
	}
}

func TestMapWriteError_OutOfRange(t *testing.T) {
	err := mapWriteError("update appointment", fmt.Errorf("%w: overflow", db.ErrOutOfRange))
	ae, ok := err.(*apperr.Error)
	if !ok || ae.Kind != apperr.KindValidation || ae.Message != "Invalid Fields" {
		t.Errorf("expected Invalid Fields, got %v", err)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.Update(context.Background(), "missing", UpdateRequest{}); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Update_StatusTransition(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.PatientEmail = strPtr("john@example.com")
	a, _ := env.svc.Create(context.Background(), req)

	completed := StatusCompleted
	if _, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{Status: &completed}); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict pending->completed, got %v", err)
	}

	cancelled := StatusCancelled
	updated, err := env.svc.Update(context.Background(), a.ID, UpdateRequest{Status: &cancelled, CancellationReason: strPtr("sick")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusCancelled || updated.CancellationReason == nil || *updated.CancellationReason != "sick" {
		t.Errorf("expected cancelled with reason, got %+v", updated)
	}
	if len(env.mail.Calls()) != 1 {
		t.Errorf("expected cancellation e-mail, got %d", len(env.mail.Calls()))
	}
}

func TestService_Lifecycle(t *testing.T) {
	env := newTestEnv()
	a, _ := env.svc.Create(context.Background(), bookingRequest())

	if _, err := env.svc.Complete(context.Background(), a.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict completing a pending appointment, got %v", err)
	}
	confirmed, err := env.svc.Confirm(context.Background(), a.ID)
	if err != nil || confirmed.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %v (%v)", confirmed, err)
	}
	completed, err := env.svc.Complete(context.Background(), a.ID)
	if err != nil || completed.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v (%v)", completed, err)
	}
	if _, _, err := env.svc.Cancel(context.Background(), a.ID, ""); !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected conflict cancelling a completed appointment, got %v", err)
	}

	keys := env.events.Keys()
	want := []string{events.AppointmentCreated, events.AppointmentConfirmed, events.AppointmentCompleted}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v", want, keys)
	}
}

func TestService_Cancel_NotifiesLinkedPatient(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.PatientID = strPtr("pat-1")
	a, _ := env.svc.Create(context.Background(), req)

	cancelled, n, err := env.svc.Cancel(context.Background(), a.ID, "Doctor unavailable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if n.Status != notification.StatusSent || n.Recipient != "john@example.com" {
		t.Errorf("expected sent to john@example.com, got %+v", n)
	}
	calls := env.mail.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Body, "Reason: Doctor unavailable") {
		t.Errorf("expected e-mail with reason, got %+v", calls)
	}
	if !strings.Contains(calls[0].Body, "Dr Smile") || !strings.Contains(calls[0].Subject, "2025-03-01") {
		t.Errorf("expected doctor name and date in message, got %+v", calls[0])
	}
}

func TestService_Cancel_NotificationFailureKeepsCancellation(t *testing.T) {
	env := newTestEnv()
	env.mail.ShouldFail = true
	env.mail.FailError = "smtp down"
	req := bookingRequest()
	req.PatientEmail = strPtr("john@example.com")
	a, _ := env.svc.Create(context.Background(), req)

	_, n, err := env.svc.Cancel(context.Background(), a.ID, "")
	if err != nil {
		t.Fatalf("expected cancellation to succeed, got %v", err)
	}
	if n.Status != notification.StatusFailed {
		t.Errorf("expected failed notification, got %s", n.Status)
	}
	stored, _ := env.svc.Get(context.Background(), a.ID)
	if stored.Status != StatusCancelled {
		t.Errorf("expected stored status cancelled, got %s", stored.Status)
	}
}

func TestService_Cancel_NoRecipientSkipped(t *testing.T) {
	env := newTestEnv()
	a, _ := env.svc.Create(context.Background(), bookingRequest())

	_, n, err := env.svc.Cancel(context.Background(), a.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != notification.StatusSkipped {
		t.Errorf("expected skipped, got %s", n.Status)
	}
	if len(env.mail.Calls()) != 0 {
		t.Error("expected no e-mail")
	}
}

func TestService_Delete(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.PatientEmail = strPtr("john@example.com")
	a, _ := env.svc.Create(context.Background(), req)

	n, err := env.svc.Delete(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != notification.StatusSent {
		t.Errorf("expected sent notification, got %s", n.Status)
	}
	if _, err := env.svc.Get(context.Background(), a.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if _, err := env.svc.Delete(context.Background(), a.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestService_Delete_InactiveSkipsNotification(t *testing.T) {
	env := newTestEnv()
	req := bookingRequest()
	req.PatientEmail = strPtr("john@example.com")
	a, _ := env.svc.Create(context.Background(), req)
	env.svc.Cancel(context.Background(), a.ID, "")

	n, err := env.svc.Delete(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != notification.StatusSkipped {
		t.Errorf("expected skipped, got %s", n.Status)
	}
	if len(env.mail.Calls()) != 1 {
		t.Errorf("expected only the cancel e-mail, got %d", len(env.mail.Calls()))
	}
}

func TestService_Summary(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a1, _ := env.svc.Create(ctx, bookingRequest())
	env.svc.Confirm(ctx, a1.ID)
	env.svc.Complete(ctx, a1.ID)

	r2 := bookingRequest()
	r2.Fee = fee("120.25")
	a2, _ := env.svc.Create(ctx, r2)
	env.svc.Confirm(ctx, a2.ID)
	env.svc.Complete(ctx, a2.ID)

	a3, _ := env.svc.Create(ctx, bookingRequest())
	env.svc.Cancel(ctx, a3.ID, "")

	other := bookingRequest()
	other.DoctorRef = "dr-456"
	env.svc.Create(ctx, other)

	sum, err := env.svc.Summary(ctx, "dr-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Total != 3 {
		t.Errorf("expected total 3, got %d", sum.Total)
	}
	if sum.Counts[StatusCompleted] != 2 || sum.Counts[StatusCancelled] != 1 || sum.Counts[StatusPending] != 0 {
		t.Errorf("unexpected counts %v", sum.Counts)
	}
	if sum.Earnings.String() != "170.25" {
		t.Errorf("expected earnings 170.25, got %s", sum.Earnings)
	}

	all, _ := env.svc.Summary(ctx, "")
	if all.Total != 4 || all.Counts[StatusPending] != 1 {
		t.Errorf("expected 4 total with 1 pending, got %+v", all)
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}
