package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type CaseStatus string

const (
	CaseStatusPending  CaseStatus = "pending"
	CaseStatusReviewed CaseStatus = "reviewed"
)

// TriageCase is one intake awaiting (or past) clinician review. Summary and
// urgency come from the intake pipeline; the override fields record manual
// corrections and which user made them.
type TriageCase struct {
	ID                uuid.UUID  `json:"case_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	Status            CaseStatus `json:"status"`
	Summary           string     `json:"summary,omitempty"`
	Urgency           string     `json:"urgency,omitempty"`
	OverrideSummary   string     `json:"override_summary,omitempty"`
	OverrideSummaryBy *uuid.UUID `json:"override_summary_by,omitempty"`
	OverrideUrgency   string     `json:"override_urgency,omitempty"`
	OverrideUrgencyBy *uuid.UUID `json:"override_urgency_by,omitempty"`
	ReviewReason      string     `json:"review_reason,omitempty"`
	ReviewedBy        *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewTimestamp   *time.Time `json:"review_timestamp,omitempty"`
	ScheduledDate     *time.Time `json:"scheduled_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type TriageCaseRepository interface {
	Create(ctx context.Context, c *TriageCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*TriageCase, error)
	Update(ctx context.Context, c *TriageCase) error
	List(ctx context.Context, limit int) ([]*TriageCase, error)
	ListByStatus(ctx context.Context, status CaseStatus, limit int) ([]*TriageCase, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status CaseStatus) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
