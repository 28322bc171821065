package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencliniq/triage/internal/domain"
)

const patientColumns = `patient_id, first_name, last_name, dob, contact_info, insurance_info,
	language_preference, returning_patient, verified, created_at, updated_at`

type PatientRepo struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) *PatientRepo {
	return &PatientRepo{pool: pool}
}

func (r *PatientRepo) Create(ctx context.Context, p *domain.Patient) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO patients (patient_id, first_name, last_name, dob, contact_info, insurance_info,
		                       language_preference, returning_patient, verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.FirstName, p.LastName, p.DOB, p.ContactInfo, p.InsuranceInfo,
		p.LanguagePreference, p.ReturningPatient, p.Verified, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("patientRepo.Create: %w", err)
	}

	return nil
}

func (r *PatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Patient, error) {
	var p domain.Patient
	err := r.pool.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE patient_id = $1`, id,
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.DOB, &p.ContactInfo, &p.InsuranceInfo,
		&p.LanguagePreference, &p.ReturningPatient, &p.Verified, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patientRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("patientRepo.GetByID: %w", err)
	}

	return &p, nil
}

func (r *PatientRepo) Update(ctx context.Context, p *domain.Patient) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE patients SET first_name = $2, last_name = $3, dob = $4, contact_info = $5,
		                     insurance_info = $6, language_preference = $7,
		                     returning_patient = $8, verified = $9, updated_at = $10
		 WHERE patient_id = $1`,
		p.ID, p.FirstName, p.LastName, p.DOB, p.ContactInfo, p.InsuranceInfo,
		p.LanguagePreference, p.ReturningPatient, p.Verified, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("patientRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patientRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}
