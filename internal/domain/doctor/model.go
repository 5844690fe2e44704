package doctor

import (
	"time"

	"github.com/medibook/medibook/internal/platform/money"
)

// Doctor is a practitioner profile owned by exactly one user.
type Doctor struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Specialty  string       `json:"specialty"`
	Experience string       `json:"experience"`
	Fees       money.Amount `json:"fees"`
	Education  string       `json:"education"`
	Address1   string       `json:"address1"`
	Address2   *string      `json:"address2,omitempty"`
	AboutMe    string       `json:"aboutMe"`
	Image      string       `json:"image"`
	UserID     string       `json:"userId"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// Profile holds the editable doctor fields. Fees default to zero when omitted.
type Profile struct {
	Name       string       `json:"name" validate:"required"`
	Email      string       `json:"email" validate:"required,email"`
	Specialty  string       `json:"specialty"`
	Experience string       `json:"experience"`
	Fees       money.Amount `json:"fees"`
	Education  string       `json:"education"`
	Address1   string       `json:"address1"`
	Address2   *string      `json:"address2"`
	AboutMe    string       `json:"aboutMe"`
	Image      string       `json:"image"`
}

type CreateDoctorRequest struct {
	Profile
	UserID string `json:"userId" validate:"required"`
}

type ListFilter struct {
	Specialty string
}

func (p Profile) apply(d *Doctor) {
	d.Name = p.Name
	d.Email = p.Email
	d.Specialty = p.Specialty
	d.Experience = p.Experience
	d.Fees = p.Fees
	d.Education = p.Education
	d.Address1 = p.Address1
	d.Address2 = p.Address2
	d.AboutMe = p.AboutMe
	d.Image = p.Image
}
