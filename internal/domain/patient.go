package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID                 uuid.UUID  `json:"patient_id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	DOB                *time.Time `json:"dob,omitempty"`
	ContactInfo        string     `json:"contact_info,omitempty"`
	InsuranceInfo      string     `json:"insurance_info,omitempty"`
	LanguagePreference string     `json:"language_preference,omitempty"`
	ReturningPatient   bool       `json:"returning_patient"`
	Verified           bool       `json:"verified"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
}
