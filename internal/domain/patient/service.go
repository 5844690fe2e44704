package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medibook/medibook/internal/platform/apperr"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/validate"
)

type Service struct {
	patients Repository
	now      func() time.Time
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients, now: time.Now}
}

func (s *Service) Create(ctx context.Context, req PatientRequest) (*Patient, error) {
	p, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	p.ID = strings.TrimSpace(req.ID)
	if err := s.patients.Create(ctx, p); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, apperr.Conflict("Patient already exists")
		}
		return nil, apperr.Internal("create patient", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, mapError("get patient", err)
	}
	return p, nil
}

// Update replaces every profile field of an existing patient.
func (s *Service) Update(ctx context.Context, id string, req PatientRequest) (*Patient, error) {
	p, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, mapError("update patient", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return mapError("delete patient", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	patients, total, err := s.patients.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list patients", err)
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return patients, total, nil
}

func (s *Service) fromRequest(req PatientRequest) (*Patient, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.BirthDate = strings.TrimSpace(req.BirthDate)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	birth, _ := validate.ParseDate(req.BirthDate)
	if !validate.NotInFuture(birth, s.now()) {
		return nil, apperr.Validation("Invalid Fields", map[string]string{"birthDate": "must not be in the future"})
	}

	phone := req.Phone
	if phone != nil && strings.TrimSpace(*phone) == "" {
		phone = nil
	}

	return &Patient{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     phone,
		BirthDate: birth.Format(validate.DateLayout),
		Gender:    req.Gender,
		Address:   req.Address,
		AboutMe:   req.AboutMe,
		Image:     req.Image,
	}, nil
}

func mapError(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Patient not found")
	}
	return apperr.Internal(op, err)
}
