package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/opencliniq/triage/internal/api/v1"
	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/domain"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *recordingNotifier) Notify(_ context.Context, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return nil
}

// ---------------------------------------------------------------------------
// GET /audit-logs
// ---------------------------------------------------------------------------

func TestListAuditLogs(t *testing.T) {
	t.Parallel()

	t.Run("admin_lists_with_filters", func(t *testing.T) {
		t.Parallel()

		actorID := uuid.New()
		_, api := humatest.New(t)
		store := &mockDataStore{
			audit: &mockAuditRepo{
				listFunc: func(_ context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int64, error) {
					assert.Equal(t, domain.ResourceTriageCase, f.ResourceType)
					require.NotNil(t, f.ActorID)
					assert.Equal(t, actorID, *f.ActorID)
					assert.Equal(t, domain.AuditStatusFail, f.Status)
					assert.Equal(t, 50, f.Limit)
					return []*domain.AuditEntry{
						{LogID: uuid.New(), Action: domain.ActionDeleteCase, Status: domain.AuditStatusFail},
					}, 7, nil
				},
			},
		}

		v1.RegisterAuditLogRoutes(api, store, &mockVerifier{}, &recordingNotifier{})

		resp := api.GetCtx(adminCtx(uuid.New()),
			"/audit-logs?resource_type=TRIAGE_CASE&actor_id="+actorID.String()+"&status=FAIL&limit=50")
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Logs  []map[string]any `json:"logs"`
			Count int64            `json:"count"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Logs, 1)
		assert.EqualValues(t, 7, body.Count)
	})

	t.Run("clinician_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuditLogRoutes(api, &mockDataStore{audit: &mockAuditRepo{}}, &mockVerifier{}, &recordingNotifier{})

		resp := api.GetCtx(clinicianCtx(uuid.New()), "/audit-logs")
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /audit-logs/verify
// ---------------------------------------------------------------------------

func TestVerifyAuditChain(t *testing.T) {
	t.Parallel()

	caseID := uuid.New()

	t.Run("valid_chain_no_alert", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		notifier := &recordingNotifier{}
		verifier := &mockVerifier{
			verifyFunc: func(_ context.Context, resourceType string, resourceID uuid.UUID) (*audit.VerificationResult, error) {
				assert.Equal(t, domain.ResourceTriageCase, resourceType)
				assert.Equal(t, caseID, resourceID)
				return &audit.VerificationResult{Valid: true, Entries: 12}, nil
			},
		}

		v1.RegisterAuditLogRoutes(api, &mockDataStore{}, verifier, notifier)

		resp := api.GetCtx(adminCtx(uuid.New()),
			"/audit-logs/verify?resource_type=TRIAGE_CASE&resource_id="+caseID.String())
		require.Equal(t, http.StatusOK, resp.Code)

		var body audit.VerificationResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Valid)
		assert.Equal(t, 12, body.Entries)
		assert.Empty(t, notifier.subjects)
	})

	t.Run("broken_chain_raises_alert", func(t *testing.T) {
		t.Parallel()

		brokenAt := uuid.New()
		_, api := humatest.New(t)
		notifier := &recordingNotifier{}
		verifier := &mockVerifier{
			verifyFunc: func(_ context.Context, _ string, _ uuid.UUID) (*audit.VerificationResult, error) {
				return &audit.VerificationResult{
					Valid:    false,
					Entries:  3,
					BrokenAt: &brokenAt,
					Reason:   audit.ReasonHashMismatch,
				}, nil
			},
		}

		v1.RegisterAuditLogRoutes(api, &mockDataStore{}, verifier, notifier)

		resp := api.GetCtx(adminCtx(uuid.New()),
			"/audit-logs/verify?resource_type=TRIAGE_CASE&resource_id="+caseID.String())
		require.Equal(t, http.StatusOK, resp.Code,
			"a broken chain is a finding, not a request failure")

		var body audit.VerificationResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Valid)
		require.NotNil(t, body.BrokenAt)
		assert.Equal(t, brokenAt, *body.BrokenAt)
		assert.Equal(t, audit.ReasonHashMismatch, body.Reason)

		require.Len(t, notifier.subjects, 1)
		assert.Equal(t, "audit chain broken", notifier.subjects[0])
	})

	t.Run("clinician_forbidden", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuditLogRoutes(api, &mockDataStore{}, &mockVerifier{}, &recordingNotifier{})

		resp := api.GetCtx(clinicianCtx(uuid.New()),
			"/audit-logs/verify?resource_type=USER&resource_id="+uuid.NewString())
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}
