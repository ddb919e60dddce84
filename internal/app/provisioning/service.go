// Package provisioning runs the per-row provisioning saga: it creates an
// account in the identity provider, logs it into the chat backend, persists
// the domain record and, depending on the variant, sets up session rooms or
// re-syncs room memberships. Every row ends with exactly one audit entry.
package provisioning

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/account-import/internal/domain"
)

type identityProvider interface {
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
	CreateAccount(ctx context.Context, profile domain.AccountProfile) (string, error)
	SetPassword(ctx context.Context, accountID, password string) error
	AssignRole(ctx context.Context, accountID string, role domain.Role) error
	UserHasAuthority(ctx context.Context, accountID string, authority domain.Authority) (bool, error)
}

type chatBackend interface {
	Login(ctx context.Context, username, password string) (domain.ChatCredentials, error)
	Logout(ctx context.Context, creds domain.ChatCredentials) error
	CreatePrivateRoom(ctx context.Context, creds domain.ChatCredentials, name string) (string, error)
	AddUserToRoom(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error
	RemoveUserFromRoom(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error
	PurgeSystemMessages(ctx context.Context, creds domain.ChatCredentials, roomID string, oldest, latest time.Time) error
	PostMessage(ctx context.Context, creds domain.ChatCredentials, roomID, text string) error
}

// AgencyReader looks up an agency by id.
type AgencyReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Agency, error)
}

type consultingTypeRegistry interface {
	Get(id int) (*domain.ConsultingTypeSettings, error)
}

type userRepo interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	SaveUserAgency(ctx context.Context, userID uuid.UUID, agencyID int64) error
}

type consultantRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Consultant, error)
	FindByUsername(ctx context.Context, username string) (*domain.Consultant, error)
	FindByEmail(ctx context.Context, email string) (*domain.Consultant, error)
	FindByAgency(ctx context.Context, agencyID int64) ([]domain.Consultant, error)
	Create(ctx context.Context, c *domain.Consultant) (*domain.Consultant, error)
	SaveAgencyMembership(ctx context.Context, consultantID uuid.UUID, agencyID int64) error
}

type sessionRepo interface {
	Create(ctx context.Context, s *domain.Session) (*domain.Session, error)
	UpdateRooms(ctx context.Context, id uuid.UUID, chatRoomID string, feedbackRoomID *string) error
	FindOpenForAgencies(ctx context.Context, agencyIDs []int64) ([]domain.Session, error)
	FindInProgressTeamForAgencies(ctx context.Context, agencyIDs []int64) ([]domain.Session, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditWriter receives the one audit entry of every row.
type AuditWriter interface {
	Write(ctx context.Context, entry domain.AuditEntry)
}

// StepObserver is told how long every executed step took. kind is empty
// when the step succeeded.
type StepObserver interface {
	ObserveStep(variant domain.Variant, step Step, d time.Duration, kind Kind)
}

// BatchContext is the state shared by all rows of one batch run.
type BatchContext struct {
	ID        uuid.UUID
	Variant   domain.Variant
	StartedAt time.Time
	DryRun    bool

	// System posts welcome messages and joins every asker room; Technical
	// owns feedback rooms and manages memberships. Both are logged in once
	// per batch by the driver.
	System    domain.ChatCredentials
	Technical domain.ChatCredentials

	Audit AuditWriter
	// Agencies is the batch-scoped cached reader used by asker plans.
	// When nil the uncached reader is used.
	Agencies AgencyReader
	Steps    StepObserver
}

// Config holds the orchestrator settings.
type Config struct {
	DefaultRole domain.Role
	PurgeWindow time.Duration
}

// Orchestrator runs the provisioning plans.
type Orchestrator struct {
	log             *slog.Logger
	identity        identityProvider
	chat            chatBackend
	agencies        AgencyReader
	consultingTypes consultingTypeRegistry
	users           userRepo
	consultants     consultantRepo
	sessions        sessionRepo
	tx              txManager
	cfg             Config
	now             func() time.Time
	plans           map[domain.Variant]plan
}

// NewOrchestrator creates an Orchestrator. agencies must bypass any cache:
// consultant rows always read the agency fresh from the store.
func NewOrchestrator(
	logger *slog.Logger,
	identity identityProvider,
	chat chatBackend,
	agencies AgencyReader,
	consultingTypes consultingTypeRegistry,
	users userRepo,
	consultants consultantRepo,
	sessions sessionRepo,
	tx txManager,
	cfg Config,
) *Orchestrator {
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = domain.RoleUser
	}
	if cfg.PurgeWindow <= 0 {
		cfg.PurgeWindow = 24 * time.Hour
	}

	o := &Orchestrator{
		log:             logger.With("service", "provisioning"),
		identity:        identity,
		chat:            chat,
		agencies:        agencies,
		consultingTypes: consultingTypes,
		users:           users,
		consultants:     consultants,
		sessions:        sessions,
		tx:              tx,
		cfg:             cfg,
		now:             time.Now,
	}
	o.plans = o.buildPlans()
	return o
}
