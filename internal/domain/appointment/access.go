package appointment

import (
	"context"

	"github.com/medibook/medibook/internal/domain/doctor"
	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/auth"
)

// Callers reach appointments through ownership. Admins reach all of them. A
// doctor owns the appointments booked with the profile attached to their
// user. A patient owns those whose patientId is their user id, since patient
// profiles share the owning user's id.

func notOwned() error {
	return apperr.Forbidden("Cannot access another user's appointment")
}

func noDoctorProfile() error {
	return apperr.Forbidden("No doctor profile is linked to this user")
}

func isAdmin(ctx context.Context) bool {
	return auth.HasRole(ctx, auth.RoleAdmin)
}

// callerDoctor returns the calling user's doctor profile, or nil when the
// caller holds no doctor role or has no profile yet.
func (s *Service) callerDoctor(ctx context.Context) (*doctor.Doctor, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" || !auth.HasRole(ctx, auth.RoleDoctor) {
		return nil, nil
	}
	d, err := s.doctors.GetByUserID(ctx, uid)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, nil
	}
	return d, err
}

// Authorize loads appointment id on behalf of the caller. With manage set
// only the owning doctor passes; otherwise the linked patient passes too.
func (s *Service) Authorize(ctx context.Context, id string, manage bool) (*Appointment, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isAdmin(ctx) {
		return a, nil
	}
	uid := auth.UserIDFromContext(ctx)
	if !manage && uid != "" && a.PatientID != nil && *a.PatientID == uid {
		return a, nil
	}
	d, err := s.callerDoctor(ctx)
	if err != nil {
		return nil, err
	}
	if d != nil && d.ID == a.DoctorID {
		return a, nil
	}
	return nil, notOwned()
}

// ScopeList narrows filter to the caller's own appointments. Doctors see the
// bookings made with them and patients see their own.
func (s *Service) ScopeList(ctx context.Context, filter *ListFilter) error {
	if isAdmin(ctx) {
		return nil
	}
	d, err := s.callerDoctor(ctx)
	if err != nil {
		return err
	}
	if d != nil {
		filter.DoctorID = d.ID
		filter.DoctorEmail = ""
		return nil
	}
	uid := auth.UserIDFromContext(ctx)
	if uid != "" && auth.HasRole(ctx, auth.RolePatient) {
		filter.PatientID = uid
		return nil
	}
	return noDoctorProfile()
}

// ScopeSummary returns the doctor id the caller may aggregate over. Admins
// may pass any id (or none for every doctor).
func (s *Service) ScopeSummary(ctx context.Context, doctorID string) (string, error) {
	if isAdmin(ctx) {
		return doctorID, nil
	}
	d, err := s.callerDoctor(ctx)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", noDoctorProfile()
	}
	return d.ID, nil
}

// ScopeBooking links a patient's booking to the caller's own profile.
func (s *Service) ScopeBooking(ctx context.Context, req *CreateRequest) {
	if isAdmin(ctx) {
		return
	}
	uid := auth.UserIDFromContext(ctx)
	req.PatientID = &uid
}
