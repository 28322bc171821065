package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Patients() domain.PatientRepository
	Cases() domain.TriageCaseRepository
	Audit() domain.AuditRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Login(ctx context.Context, email, password string) (user *domain.User, accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) (uuid.UUID, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Auditor records privileged actions. *audit.Recorder satisfies this
// interface. Handlers call it after the primary effect has committed and
// deliberately discard the error: the Recorder has already logged and
// alerted, and audit failure must not fail the committed action.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event) (*domain.AuditEntry, error)
}

// ChainVerifier runs read-side chain verification. *audit.Engine satisfies
// this interface.
type ChainVerifier interface {
	VerifyChain(ctx context.Context, resourceType string, resourceID uuid.UUID) (*audit.VerificationResult, error)
}

// FeedPublisher pushes case change events to the live dashboard feed.
// *ws.Hub satisfies this interface.
type FeedPublisher interface {
	PublishCase(ctx context.Context, eventType string, caseID uuid.UUID) error
}
