package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opencliniq/triage/internal/api/ws"
	"github.com/opencliniq/triage/internal/domain"
	"github.com/opencliniq/triage/internal/server/middleware"
)

// CasePublic is a triage case joined with the patient demographics and
// reviewer identities the dashboard displays.
type CasePublic struct {
	domain.TriageCase
	FirstName              string     `json:"first_name"`
	LastName               string     `json:"last_name"`
	DOB                    *time.Time `json:"dob,omitempty"`
	ContactInfo            string     `json:"contact_info,omitempty"`
	InsuranceInfo          string     `json:"insurance_info,omitempty"`
	LanguagePreference     string     `json:"language_preference,omitempty"`
	ReturningPatient       bool       `json:"returning_patient"`
	Verified               bool       `json:"verified"`
	ReviewedByEmail        string     `json:"reviewed_by_email,omitempty"`
	OverrideSummaryByEmail string     `json:"override_summary_by_email,omitempty"`
	OverrideUrgencyByEmail string     `json:"override_urgency_by_email,omitempty"`
}

type ListCasesInput struct {
	Limit int `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Max rows"`
}

type ListCasesOutput struct {
	Body struct {
		Cases []*CasePublic `json:"cases"`
		Count int64         `json:"count"`
	}
}

type ListCasesByStatusInput struct {
	Status string `path:"status" enum:"pending,reviewed" doc:"Case status"`
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Max rows"`
}

type GetCaseInput struct {
	ID uuid.UUID `path:"id" doc:"Case ID"`
}

type GetCaseOutput struct {
	Body *CasePublic
}

type CreateCaseInput struct {
	Body struct {
		PatientID uuid.UUID `json:"patient_id" doc:"Existing patient"`
		Summary   string    `json:"summary,omitempty" doc:"Intake summary"`
		Urgency   string    `json:"urgency,omitempty" doc:"Intake urgency"`
	}
}

type CreateCaseOutput struct {
	Status int
	Body   *CasePublic
}

type UpdateCaseInput struct {
	ID   uuid.UUID `path:"id" doc:"Case ID"`
	Body struct {
		// Case fields.
		Status          *string    `json:"status,omitempty" doc:"Case status"`
		Summary         *string    `json:"summary,omitempty" doc:"Intake summary"`
		Urgency         *string    `json:"urgency,omitempty" doc:"Intake urgency"`
		OverrideSummary *string    `json:"override_summary,omitempty" doc:"Clinician summary override"`
		OverrideUrgency *string    `json:"override_urgency,omitempty" doc:"Clinician urgency override"`
		ScheduledDate   *time.Time `json:"scheduled_date,omitempty" doc:"Scheduled appointment"`
		ReviewReason    *string    `json:"review_reason,omitempty" doc:"Rejected here; use the review endpoint"`

		// Patient fields.
		FirstName          *string    `json:"first_name,omitempty" doc:"Patient first name"`
		LastName           *string    `json:"last_name,omitempty" doc:"Patient last name"`
		DOB                *time.Time `json:"dob,omitempty" doc:"Patient date of birth"`
		ContactInfo        *string    `json:"contact_info,omitempty" doc:"Patient contact info"`
		InsuranceInfo      *string    `json:"insurance_info,omitempty" doc:"Patient insurance info"`
		LanguagePreference *string    `json:"language_preference,omitempty" doc:"Patient language preference"`
		ReturningPatient   *bool      `json:"returning_patient,omitempty" doc:"Returning patient"`
		Verified           *bool      `json:"verified,omitempty" doc:"Patient identity verified"`
	}
}

type UpdateCaseOutput struct {
	Body *CasePublic
}

type DeleteCaseInput struct {
	ID uuid.UUID `path:"id" doc:"Case ID"`
}

type DeleteCaseOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

type ReviewCaseInput struct {
	ID   uuid.UUID `path:"id" doc:"Case ID"`
	Body struct {
		ReviewReason  string     `json:"review_reason" minLength:"1" doc:"Why the case was reviewed"`
		ScheduledDate *time.Time `json:"scheduled_date,omitempty" doc:"Scheduled appointment"`
	}
}

type ReviewCaseOutput struct {
	Body *CasePublic
}

// RegisterCaseRoutes wires the triage-case endpoints. Reads and writes are
// all audited; mutations additionally publish to the live case feed.
func RegisterCaseRoutes(api huma.API, store DataStore, auditor Auditor, feed FeedPublisher) {
	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/triage-cases",
		Summary:     "List triage cases",
		Tags:        []string{"Triage Cases"},
	}, func(ctx context.Context, input *ListCasesInput) (*ListCasesOutput, error) {
		count, err := store.Cases().Count(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count cases", err)
		}

		cases, err := store.Cases().List(ctx, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list cases", err)
		}

		public, err := buildCasesPublic(ctx, store, cases)
		if err != nil {
			return nil, err
		}

		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionListCases,
			domain.ResourceTriageCase, nil, queryDetails("", input.Limit, len(public))))

		out := &ListCasesOutput{}
		out.Body.Cases = public
		out.Body.Count = count
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cases-by-status",
		Method:      http.MethodGet,
		Path:        "/triage-cases/status/{status}",
		Summary:     "List triage cases by status",
		Tags:        []string{"Triage Cases"},
	}, func(ctx context.Context, input *ListCasesByStatusInput) (*ListCasesOutput, error) {
		status := domain.CaseStatus(input.Status)

		count, err := store.Cases().CountByStatus(ctx, status)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count cases", err)
		}

		cases, err := store.Cases().ListByStatus(ctx, status, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list cases", err)
		}

		public, err := buildCasesPublic(ctx, store, cases)
		if err != nil {
			return nil, err
		}

		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionListCases,
			domain.ResourceTriageCase, nil, queryDetails(input.Status, input.Limit, len(public))))

		out := &ListCasesOutput{}
		out.Body.Cases = public
		out.Body.Count = count
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/triage-cases/{id}",
		Summary:     "Get a triage case by ID",
		Tags:        []string{"Triage Cases"},
	}, func(ctx context.Context, input *GetCaseInput) (*GetCaseOutput, error) {
		c, err := store.Cases().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("triage case not found")
			}
			return nil, huma.Error500InternalServerError("failed to get case", err)
		}

		public, err := buildCasePublic(ctx, store, c)
		if err != nil {
			return nil, err
		}

		id := c.ID
		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionViewCase,
			domain.ResourceTriageCase, &id, nil))

		return &GetCaseOutput{Body: public}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-case",
		Method:        http.MethodPost,
		Path:          "/triage-cases",
		Summary:       "Create a triage case",
		Tags:          []string{"Triage Cases"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateCaseInput) (*CreateCaseOutput, error) {
		if _, err := store.Patients().GetByID(ctx, input.Body.PatientID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("patient not found")
			}
			return nil, huma.Error500InternalServerError("failed to validate patient", err)
		}

		now := time.Now()
		c := &domain.TriageCase{
			ID:        uuid.New(),
			PatientID: input.Body.PatientID,
			Status:    domain.CaseStatusPending,
			Summary:   input.Body.Summary,
			Urgency:   input.Body.Urgency,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := store.Cases().Create(ctx, c); err != nil {
			return nil, huma.Error500InternalServerError("failed to create case", err)
		}

		public, err := buildCasePublic(ctx, store, c)
		if err != nil {
			return nil, err
		}

		id := c.ID
		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionCreateCase,
			domain.ResourceTriageCase, &id,
			fieldsDetails([]string{"patientID", "summary", "urgency"})))

		publishCase(ctx, feed, ws.EventCaseCreated, c.ID)

		return &CreateCaseOutput{Status: http.StatusCreated, Body: public}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-case",
		Method:      http.MethodPut,
		Path:        "/triage-cases/{id}",
		Summary:     "Update a triage case and/or its patient info",
		Tags:        []string{"Triage Cases"},
	}, registerUpdateCase(store, auditor, feed))

	huma.Register(api, huma.Operation{
		OperationID: "delete-case",
		Method:      http.MethodDelete,
		Path:        "/triage-cases/{id}",
		Summary:     "Delete a triage case",
		Tags:        []string{"Triage Cases"},
	}, func(ctx context.Context, input *DeleteCaseInput) (*DeleteCaseOutput, error) {
		if _, err := store.Cases().GetByID(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("triage case not found")
			}
			return nil, huma.Error500InternalServerError("failed to get case", err)
		}

		if err := store.Cases().Delete(ctx, input.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete case", err)
		}

		id := input.ID
		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionDeleteCase,
			domain.ResourceTriageCase, &id, nil))

		publishCase(ctx, feed, ws.EventCaseDeleted, input.ID)

		out := &DeleteCaseOutput{}
		out.Body.Message = "triage case deleted"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-case",
		Method:      http.MethodPatch,
		Path:        "/triage-cases/{id}/review",
		Summary:     "Mark a triage case reviewed",
		Tags:        []string{"Triage Cases"},
	}, func(ctx context.Context, input *ReviewCaseInput) (*ReviewCaseOutput, error) {
		if strings.TrimSpace(input.Body.ReviewReason) == "" {
			return nil, huma.Error400BadRequest("review reason is required")
		}

		c, err := store.Cases().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("triage case not found")
			}
			return nil, huma.Error500InternalServerError("failed to get case", err)
		}

		if c.Status == domain.CaseStatusReviewed {
			return nil, huma.Error400BadRequest("case is already reviewed")
		}

		userID, _ := middleware.UserIDFromContext(ctx)
		now := time.Now()

		c.Status = domain.CaseStatusReviewed
		c.ReviewReason = input.Body.ReviewReason
		c.ReviewedBy = &userID
		c.ReviewTimestamp = &now
		fields := []string{"status", "reviewReason", "reviewedBy", "reviewTimestamp"}
		if input.Body.ScheduledDate != nil {
			c.ScheduledDate = input.Body.ScheduledDate
			fields = append(fields, "scheduledDate")
		}
		c.UpdatedAt = now

		if err := store.Cases().Update(ctx, c); err != nil {
			return nil, huma.Error500InternalServerError("failed to review case", err)
		}

		public, err := buildCasePublic(ctx, store, c)
		if err != nil {
			return nil, err
		}

		id := c.ID
		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionReviewCase,
			domain.ResourceTriageCase, &id, fieldsDetails(fields)))

		publishCase(ctx, feed, ws.EventCaseReviewed, c.ID)

		return &ReviewCaseOutput{Body: public}, nil
	})
}

// registerUpdateCase handles the split update: patient demographic fields go
// to the patient row (audited as UPDATE_PATIENT), case fields to the case
// row (audited as UPDATE_CASE). Review-only fields are rejected so the
// review endpoint stays the single path to the reviewed state.
func registerUpdateCase(store DataStore, auditor Auditor, feed FeedPublisher) func(context.Context, *UpdateCaseInput) (*UpdateCaseOutput, error) {
	return func(ctx context.Context, input *UpdateCaseInput) (*UpdateCaseOutput, error) {
		if input.Body.ReviewReason != nil ||
			(input.Body.Status != nil && domain.CaseStatus(*input.Body.Status) == domain.CaseStatusReviewed) {
			return nil, huma.Error403Forbidden("triage case cannot be reviewed through generic update")
		}

		c, err := store.Cases().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("triage case not found")
			}
			return nil, huma.Error500InternalServerError("failed to get case", err)
		}

		now := time.Now()
		userID, _ := middleware.UserIDFromContext(ctx)

		// Patient-side fields.
		var patientFields []string
		patient, err := store.Patients().GetByID(ctx, c.PatientID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("patient not found")
			}
			return nil, huma.Error500InternalServerError("failed to get patient", err)
		}
		if input.Body.FirstName != nil {
			patient.FirstName = *input.Body.FirstName
			patientFields = append(patientFields, "firstName")
		}
		if input.Body.LastName != nil {
			patient.LastName = *input.Body.LastName
			patientFields = append(patientFields, "lastName")
		}
		if input.Body.DOB != nil {
			patient.DOB = input.Body.DOB
			patientFields = append(patientFields, "dob")
		}
		if input.Body.ContactInfo != nil {
			patient.ContactInfo = *input.Body.ContactInfo
			patientFields = append(patientFields, "contactInfo")
		}
		if input.Body.InsuranceInfo != nil {
			patient.InsuranceInfo = *input.Body.InsuranceInfo
			patientFields = append(patientFields, "insuranceInfo")
		}
		if input.Body.LanguagePreference != nil {
			patient.LanguagePreference = *input.Body.LanguagePreference
			patientFields = append(patientFields, "languagePreference")
		}
		if input.Body.ReturningPatient != nil {
			patient.ReturningPatient = *input.Body.ReturningPatient
			patientFields = append(patientFields, "returningPatient")
		}
		if input.Body.Verified != nil {
			patient.Verified = *input.Body.Verified
			patientFields = append(patientFields, "verified")
		}

		if len(patientFields) > 0 {
			patient.UpdatedAt = now
			if err := store.Patients().Update(ctx, patient); err != nil {
				return nil, huma.Error500InternalServerError("failed to update patient", err)
			}

			pid := patient.ID
			_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionUpdatePatient,
				domain.ResourcePatient, &pid, fieldsDetails(patientFields)))
		}

		// Case-side fields.
		var caseFields []string
		if input.Body.Status != nil {
			c.Status = domain.CaseStatus(*input.Body.Status)
			caseFields = append(caseFields, "status")
		}
		if input.Body.Summary != nil {
			c.Summary = *input.Body.Summary
			caseFields = append(caseFields, "summary")
		}
		if input.Body.Urgency != nil {
			c.Urgency = *input.Body.Urgency
			caseFields = append(caseFields, "urgency")
		}
		if input.Body.OverrideSummary != nil {
			c.OverrideSummary = *input.Body.OverrideSummary
			c.OverrideSummaryBy = &userID
			caseFields = append(caseFields, "overrideSummary")
		}
		if input.Body.OverrideUrgency != nil {
			c.OverrideUrgency = *input.Body.OverrideUrgency
			c.OverrideUrgencyBy = &userID
			caseFields = append(caseFields, "overrideUrgency")
		}
		if input.Body.ScheduledDate != nil {
			c.ScheduledDate = input.Body.ScheduledDate
			caseFields = append(caseFields, "scheduledDate")
		}

		if len(caseFields) > 0 {
			c.UpdatedAt = now
			if err := store.Cases().Update(ctx, c); err != nil {
				return nil, huma.Error500InternalServerError("failed to update case", err)
			}

			id := c.ID
			_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionUpdateCase,
				domain.ResourceTriageCase, &id, fieldsDetails(caseFields)))

			publishCase(ctx, feed, ws.EventCaseUpdated, c.ID)
		}

		public, err := buildCasePublic(ctx, store, c)
		if err != nil {
			return nil, err
		}

		return &UpdateCaseOutput{Body: public}, nil
	}
}

func buildCasePublic(ctx context.Context, store DataStore, c *domain.TriageCase) (*CasePublic, error) {
	patient, err := store.Patients().GetByID(ctx, c.PatientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("patient not found")
		}
		return nil, huma.Error500InternalServerError("failed to get patient", err)
	}

	public := &CasePublic{
		TriageCase:         *c,
		FirstName:          patient.FirstName,
		LastName:           patient.LastName,
		DOB:                patient.DOB,
		ContactInfo:        patient.ContactInfo,
		InsuranceInfo:      patient.InsuranceInfo,
		LanguagePreference: patient.LanguagePreference,
		ReturningPatient:   patient.ReturningPatient,
		Verified:           patient.Verified,
	}

	public.ReviewedByEmail = userEmail(ctx, store, c.ReviewedBy)
	public.OverrideSummaryByEmail = userEmail(ctx, store, c.OverrideSummaryBy)
	public.OverrideUrgencyByEmail = userEmail(ctx, store, c.OverrideUrgencyBy)

	return public, nil
}

func buildCasesPublic(ctx context.Context, store DataStore, cases []*domain.TriageCase) ([]*CasePublic, error) {
	public := make([]*CasePublic, 0, len(cases))
	for _, c := range cases {
		p, err := buildCasePublic(ctx, store, c)
		if err != nil {
			return nil, err
		}
		public = append(public, p)
	}
	return public, nil
}

// userEmail resolves a user reference to an email, empty when the user is
// gone or the reference is nil.
func userEmail(ctx context.Context, store DataStore, id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	user, err := store.Users().GetByID(ctx, *id)
	if err != nil {
		return ""
	}
	return user.Email
}

func publishCase(ctx context.Context, feed FeedPublisher, eventType string, caseID uuid.UUID) {
	if err := feed.PublishCase(ctx, eventType, caseID); err != nil {
		log.Debug().Err(err).Str("event", eventType).Msg("case feed publish failed")
	}
}
