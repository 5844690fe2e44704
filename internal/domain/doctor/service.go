package doctor

import (
	"context"
	"errors"
	"strings"

	"github.com/medibook/medibook/internal/domain/user"
	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/events"
	"github.com/medibook/medibook/internal/platform/validate"
)

const (
	constraintEmail  = "doctors_email_key"
	constraintUserID = "doctors_user_id_key"
)

// UserGetter resolves the user that owns a doctor profile.
type UserGetter interface {
	Get(ctx context.Context, id string) (*user.User, error)
}

type Service struct {
	doctors Repository
	users   UserGetter
	events  *events.Emitter
}

func NewService(doctors Repository, users UserGetter, em *events.Emitter) *Service {
	return &Service{doctors: doctors, users: users, events: em}
}

func (s *Service) Create(ctx context.Context, req CreateDoctorRequest) (*Doctor, error) {
	normalizeProfile(&req.Profile)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := checkFees(req.Profile); err != nil {
		return nil, err
	}

	if _, err := s.users.Get(ctx, req.UserID); err != nil {
		return nil, err
	}

	d := &Doctor{UserID: req.UserID}
	req.Profile.apply(d)
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, mapWriteError("create doctor", err)
	}

	s.events.Emit(ctx, events.DoctorRegistered, d)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, mapReadError("get doctor", err)
	}
	return d, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	d, err := s.doctors.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, mapReadError("get doctor by email", err)
	}
	return d, nil
}

// GetByUserID returns the profile owned by userID.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*Doctor, error) {
	d, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapReadError("get doctor by user", err)
	}
	return d, nil
}

// Update replaces every profile field. The owning user cannot change.
func (s *Service) Update(ctx context.Context, id string, p Profile) (*Doctor, error) {
	normalizeProfile(&p)
	if err := validate.Struct(p); err != nil {
		return nil, err
	}
	if err := checkFees(p); err != nil {
		return nil, err
	}

	d := &Doctor{ID: id}
	p.apply(d)
	if err := s.doctors.Update(ctx, d); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("Doctor not found")
		}
		return nil, mapWriteError("update doctor", err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Doctor, int, error) {
	doctors, total, err := s.doctors.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list doctors", err)
	}
	if doctors == nil {
		doctors = []*Doctor{}
	}
	return doctors, total, nil
}

func normalizeProfile(p *Profile) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Specialty = strings.TrimSpace(p.Specialty)
	if p.Address2 != nil && strings.TrimSpace(*p.Address2) == "" {
		p.Address2 = nil
	}
}

func checkFees(p Profile) error {
	if p.Fees.IsNegative() {
		return apperr.Validation("Invalid Fields", map[string]string{"fees": "must not be negative"})
	}
	return nil
}

func mapReadError(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Doctor not found")
	}
	return apperr.Internal(op, err)
}

func mapWriteError(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrConflict):
		if db.ConstraintName(err) == constraintUserID {
			return apperr.Conflict("User already has a doctor profile")
		}
		return apperr.Conflict("Doctor with this email already exists")
	case errors.Is(err, db.ErrForeignKey):
		return apperr.NotFound("User not found")
	}
	return apperr.Internal(op, err)
}
