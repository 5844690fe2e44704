package patient

import "time"

// Patient is a patient profile. BirthDate is a calendar date (YYYY-MM-DD).
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	BirthDate string    `json:"birthDate"`
	Gender    string    `json:"gender"`
	Address   string    `json:"address"`
	AboutMe   string    `json:"aboutMe"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PatientRequest is the body of create and full-replacement update.
type PatientRequest struct {
	ID        string  `json:"id"`
	Name      string  `json:"name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone"`
	BirthDate string  `json:"birthDate" validate:"required,isodate"`
	Gender    string  `json:"gender"`
	Address   string  `json:"address"`
	AboutMe   string  `json:"aboutMe"`
	Image     string  `json:"image"`
}
