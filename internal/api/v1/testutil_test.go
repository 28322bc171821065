package v1_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/domain"
	"github.com/opencliniq/triage/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject user/role/IP into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID, role string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	return ctx
}

func adminCtx(userID uuid.UUID) context.Context {
	return userCtx(userID, middleware.RoleAdmin)
}

func clinicianCtx(userID uuid.UUID) context.Context {
	return userCtx(userID, middleware.RoleClinician)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users    domain.UserRepository
	patients domain.PatientRepository
	cases    domain.TriageCaseRepository
	audit    domain.AuditRepository
}

func (m *mockDataStore) Users() domain.UserRepository       { return m.users }
func (m *mockDataStore) Patients() domain.PatientRepository { return m.patients }
func (m *mockDataStore) Cases() domain.TriageCaseRepository { return m.cases }
func (m *mockDataStore) Audit() domain.AuditRepository      { return m.audit }

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	updateFunc     func(ctx context.Context, u *domain.User) error
	listFunc       func(ctx context.Context, limit, offset int) ([]*domain.User, error)
	deleteFunc     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	return m.updateFunc(ctx, u)
}

func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return m.listFunc(ctx, limit, offset)
}

func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock PatientRepository
// ---------------------------------------------------------------------------

type mockPatientRepo struct {
	createFunc  func(ctx context.Context, p *domain.Patient) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Patient, error)
	updateFunc  func(ctx context.Context, p *domain.Patient) error
}

func (m *mockPatientRepo) Create(ctx context.Context, p *domain.Patient) error {
	return m.createFunc(ctx, p)
}

func (m *mockPatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Patient, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockPatientRepo) Update(ctx context.Context, p *domain.Patient) error {
	return m.updateFunc(ctx, p)
}

// ---------------------------------------------------------------------------
// Mock TriageCaseRepository
// ---------------------------------------------------------------------------

type mockCaseRepo struct {
	createFunc        func(ctx context.Context, c *domain.TriageCase) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.TriageCase, error)
	updateFunc        func(ctx context.Context, c *domain.TriageCase) error
	listFunc          func(ctx context.Context, limit int) ([]*domain.TriageCase, error)
	listByStatusFunc  func(ctx context.Context, status domain.CaseStatus, limit int) ([]*domain.TriageCase, error)
	countFunc         func(ctx context.Context) (int64, error)
	countByStatusFunc func(ctx context.Context, status domain.CaseStatus) (int64, error)
	deleteFunc        func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCaseRepo) Create(ctx context.Context, c *domain.TriageCase) error {
	return m.createFunc(ctx, c)
}

func (m *mockCaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TriageCase, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockCaseRepo) Update(ctx context.Context, c *domain.TriageCase) error {
	return m.updateFunc(ctx, c)
}

func (m *mockCaseRepo) List(ctx context.Context, limit int) ([]*domain.TriageCase, error) {
	return m.listFunc(ctx, limit)
}

func (m *mockCaseRepo) ListByStatus(ctx context.Context, status domain.CaseStatus, limit int) ([]*domain.TriageCase, error) {
	return m.listByStatusFunc(ctx, status, limit)
}

func (m *mockCaseRepo) Count(ctx context.Context) (int64, error) {
	return m.countFunc(ctx)
}

func (m *mockCaseRepo) CountByStatus(ctx context.Context, status domain.CaseStatus) (int64, error) {
	return m.countByStatusFunc(ctx, status)
}

func (m *mockCaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock AuditRepository
// ---------------------------------------------------------------------------

type mockAuditRepo struct {
	appendFunc         func(ctx context.Context, entry *domain.AuditEntry, seal domain.SealFunc) (*domain.AuditEntry, error)
	latestHashFunc     func(ctx context.Context, resourceType string, resourceID uuid.UUID) (*string, error)
	listByResourceFunc func(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]*domain.AuditEntry, error)
	listFunc           func(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int64, error)
	lockFunc           func(ctx context.Context, logID uuid.UUID) error
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *domain.AuditEntry, seal domain.SealFunc) (*domain.AuditEntry, error) {
	return m.appendFunc(ctx, entry, seal)
}

func (m *mockAuditRepo) LatestHash(ctx context.Context, resourceType string, resourceID uuid.UUID) (*string, error) {
	return m.latestHashFunc(ctx, resourceType, resourceID)
}

func (m *mockAuditRepo) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]*domain.AuditEntry, error) {
	return m.listByResourceFunc(ctx, resourceType, resourceID)
}

func (m *mockAuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int64, error) {
	return m.listFunc(ctx, f)
}

func (m *mockAuditRepo) Lock(ctx context.Context, logID uuid.UUID) error {
	return m.lockFunc(ctx, logID)
}

// ---------------------------------------------------------------------------
// Mock Auditor — captures recorded events
// ---------------------------------------------------------------------------

type mockAuditor struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (m *mockAuditor) Record(_ context.Context, ev audit.Event) (*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.AuditEntry{LogID: uuid.New(), Action: ev.Action, Status: ev.Status}, nil
}

func (m *mockAuditor) recorded() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *mockAuditor) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Action)
	}
	return out
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	loginFunc   func(ctx context.Context, email, password string) (*domain.User, string, string, error)
	refreshFunc func(ctx context.Context, refreshToken string) (string, error)
	logoutFunc  func(ctx context.Context, refreshToken string) (uuid.UUID, error)
	getUserFunc func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.User, string, string, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshFunc(ctx, refreshToken)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) (uuid.UUID, error) {
	return m.logoutFunc(ctx, refreshToken)
}

func (m *mockAuthService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return m.getUserFunc(ctx, userID)
}

// ---------------------------------------------------------------------------
// Mock ChainVerifier
// ---------------------------------------------------------------------------

type mockVerifier struct {
	verifyFunc func(ctx context.Context, resourceType string, resourceID uuid.UUID) (*audit.VerificationResult, error)
}

func (m *mockVerifier) VerifyChain(ctx context.Context, resourceType string, resourceID uuid.UUID) (*audit.VerificationResult, error) {
	return m.verifyFunc(ctx, resourceType, resourceID)
}

// ---------------------------------------------------------------------------
// Mock FeedPublisher
// ---------------------------------------------------------------------------

type mockFeed struct {
	mu     sync.Mutex
	events []string
}

func (m *mockFeed) PublishCase(_ context.Context, eventType string, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return nil
}

func (m *mockFeed) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

// ---------------------------------------------------------------------------
// Mock Mailer
// ---------------------------------------------------------------------------

type mockMailer struct {
	mu      sync.Mutex
	invites []string
	resets  []string
}

func (m *mockMailer) SendCreatePassword(_ context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites = append(m.invites, to)
	return nil
}

func (m *mockMailer) SendForgotPassword(_ context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, to)
	return nil
}
