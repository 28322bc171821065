package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opencliniq/triage/internal/alert"
	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/domain"
)

type ListAuditLogsInput struct {
	ResourceType string     `query:"resource_type" enum:"USER,PATIENT,TRIAGE_CASE," doc:"Resource type filter"`
	ResourceID   *uuid.UUID `query:"resource_id" doc:"Resource ID filter"`
	ActorID      *uuid.UUID `query:"actor_id" doc:"Actor filter"`
	Action       string     `query:"action" doc:"Action filter"`
	Status       string     `query:"status" enum:"SUCCESS,FAIL," doc:"Status filter"`
	From         *time.Time `query:"from" doc:"Inclusive lower bound on timestamp"`
	To           *time.Time `query:"to" doc:"Inclusive upper bound on timestamp"`
	Limit        int        `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Max rows"`
}

type ListAuditLogsOutput struct {
	Body struct {
		Logs  []*domain.AuditEntry `json:"logs"`
		Count int64                `json:"count"`
	}
}

type VerifyChainInput struct {
	ResourceType string    `query:"resource_type" required:"true" enum:"USER,PATIENT,TRIAGE_CASE" doc:"Resource type"`
	ResourceID   uuid.UUID `query:"resource_id" required:"true" doc:"Resource ID"`
}

type VerifyChainOutput struct {
	Body *audit.VerificationResult
}

// RegisterAuditLogRoutes wires the audit read surface. Both endpoints are
// admin-only: the log records who looked at what, so exposing it to every
// clinician would itself be a disclosure channel.
func RegisterAuditLogRoutes(api huma.API, store DataStore, verifier ChainVerifier, notifier alert.Notifier) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-logs",
		Method:      http.MethodGet,
		Path:        "/audit-logs",
		Summary:     "List audit log entries",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditLogsInput) (*ListAuditLogsOutput, error) {
		if !isAdmin(ctx) {
			return nil, huma.Error403Forbidden("admin role required")
		}

		logs, count, err := store.Audit().List(ctx, domain.AuditFilter{
			ResourceType: input.ResourceType,
			ResourceID:   input.ResourceID,
			ActorID:      input.ActorID,
			Action:       input.Action,
			Status:       input.Status,
			From:         input.From,
			To:           input.To,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list audit logs", err)
		}

		out := &ListAuditLogsOutput{}
		out.Body.Logs = logs
		out.Body.Count = count
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-audit-chain",
		Method:      http.MethodGet,
		Path:        "/audit-logs/verify",
		Summary:     "Verify the hash chain for a resource",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *VerifyChainInput) (*VerifyChainOutput, error) {
		if !isAdmin(ctx) {
			return nil, huma.Error403Forbidden("admin role required")
		}

		result, err := verifier.VerifyChain(ctx, input.ResourceType, input.ResourceID)
		if err != nil {
			return nil, huma.Error500InternalServerError("chain verification failed", err)
		}

		if !result.Valid {
			brokenErr := result.Err(input.ResourceType, input.ResourceID)
			log.Error().
				Str("resource_type", input.ResourceType).
				Str("resource_id", input.ResourceID.String()).
				Str("reason", string(result.Reason)).
				Msg("audit chain broken")
			if alertErr := notifier.Notify(ctx, "audit chain broken",
				fmt.Sprintf("%v", brokenErr)); alertErr != nil {
				log.Error().Err(alertErr).Msg("failed to send chain-broken alert")
			}
		}

		return &VerifyChainOutput{Body: result}, nil
	})
}
