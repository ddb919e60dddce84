package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/account-import/internal/domain"
)

// ---------------------------------------------------------------------------
// Manual mocks (moq-style with func fields)
// ---------------------------------------------------------------------------

type mockIdentity struct {
	IsUsernameAvailableFunc func(ctx context.Context, username string) (bool, error)
	CreateAccountFunc       func(ctx context.Context, profile domain.AccountProfile) (string, error)
	SetPasswordFunc         func(ctx context.Context, accountID, password string) error
	AssignRoleFunc          func(ctx context.Context, accountID string, role domain.Role) error
	UserHasAuthorityFunc    func(ctx context.Context, accountID string, authority domain.Authority) (bool, error)

	calls []string
}

func (m *mockIdentity) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	m.calls = append(m.calls, "IsUsernameAvailable "+username)
	return m.IsUsernameAvailableFunc(ctx, username)
}

func (m *mockIdentity) CreateAccount(ctx context.Context, profile domain.AccountProfile) (string, error) {
	m.calls = append(m.calls, "CreateAccount "+profile.Username)
	return m.CreateAccountFunc(ctx, profile)
}

func (m *mockIdentity) SetPassword(ctx context.Context, accountID, password string) error {
	m.calls = append(m.calls, "SetPassword "+accountID)
	return m.SetPasswordFunc(ctx, accountID, password)
}

func (m *mockIdentity) AssignRole(ctx context.Context, accountID string, role domain.Role) error {
	m.calls = append(m.calls, "AssignRole "+accountID+" "+role.String())
	return m.AssignRoleFunc(ctx, accountID, role)
}

func (m *mockIdentity) UserHasAuthority(ctx context.Context, accountID string, authority domain.Authority) (bool, error) {
	m.calls = append(m.calls, "UserHasAuthority "+accountID)
	return m.UserHasAuthorityFunc(ctx, accountID, authority)
}

type mockChat struct {
	LoginFunc               func(ctx context.Context, username, password string) (domain.ChatCredentials, error)
	LogoutFunc              func(ctx context.Context, creds domain.ChatCredentials) error
	CreatePrivateRoomFunc   func(ctx context.Context, creds domain.ChatCredentials, name string) (string, error)
	AddUserToRoomFunc       func(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error
	RemoveUserFromRoomFunc  func(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error
	PurgeSystemMessagesFunc func(ctx context.Context, creds domain.ChatCredentials, roomID string, oldest, latest time.Time) error
	PostMessageFunc         func(ctx context.Context, creds domain.ChatCredentials, roomID, text string) error

	calls   []string
	logouts []domain.ChatCredentials
}

func (m *mockChat) Login(ctx context.Context, username, password string) (domain.ChatCredentials, error) {
	m.calls = append(m.calls, "Login "+username)
	return m.LoginFunc(ctx, username, password)
}

func (m *mockChat) Logout(ctx context.Context, creds domain.ChatCredentials) error {
	m.calls = append(m.calls, "Logout "+creds.UserID)
	m.logouts = append(m.logouts, creds)
	return m.LogoutFunc(ctx, creds)
}

func (m *mockChat) CreatePrivateRoom(ctx context.Context, creds domain.ChatCredentials, name string) (string, error) {
	m.calls = append(m.calls, "CreatePrivateRoom "+creds.UserID+" "+name)
	return m.CreatePrivateRoomFunc(ctx, creds, name)
}

func (m *mockChat) AddUserToRoom(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error {
	m.calls = append(m.calls, "AddUserToRoom "+roomID+" "+userID)
	return m.AddUserToRoomFunc(ctx, creds, roomID, userID)
}

func (m *mockChat) RemoveUserFromRoom(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error {
	m.calls = append(m.calls, "RemoveUserFromRoom "+roomID+" "+userID)
	return m.RemoveUserFromRoomFunc(ctx, creds, roomID, userID)
}

func (m *mockChat) PurgeSystemMessages(ctx context.Context, creds domain.ChatCredentials, roomID string, oldest, latest time.Time) error {
	m.calls = append(m.calls, "PurgeSystemMessages "+roomID)
	return m.PurgeSystemMessagesFunc(ctx, creds, roomID, oldest, latest)
}

func (m *mockChat) PostMessage(ctx context.Context, creds domain.ChatCredentials, roomID, text string) error {
	m.calls = append(m.calls, "PostMessage "+creds.UserID+" "+roomID)
	return m.PostMessageFunc(ctx, creds, roomID, text)
}

type mockAgencyReader struct {
	GetByIDFunc func(ctx context.Context, id int64) (*domain.Agency, error)
	calls       int
}

func (m *mockAgencyReader) GetByID(ctx context.Context, id int64) (*domain.Agency, error) {
	m.calls++
	return m.GetByIDFunc(ctx, id)
}

type mockRegistry struct {
	GetFunc func(id int) (*domain.ConsultingTypeSettings, error)
}

func (m *mockRegistry) Get(id int) (*domain.ConsultingTypeSettings, error) {
	return m.GetFunc(id)
}

type mockUserRepo struct {
	CreateFunc         func(ctx context.Context, u *domain.User) (*domain.User, error)
	SaveUserAgencyFunc func(ctx context.Context, userID uuid.UUID, agencyID int64) error

	created []domain.User
	links   []int64
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	m.created = append(m.created, *u)
	return m.CreateFunc(ctx, u)
}

func (m *mockUserRepo) SaveUserAgency(ctx context.Context, userID uuid.UUID, agencyID int64) error {
	m.links = append(m.links, agencyID)
	return m.SaveUserAgencyFunc(ctx, userID, agencyID)
}

type mockConsultantRepo struct {
	GetByIDFunc              func(ctx context.Context, id uuid.UUID) (*domain.Consultant, error)
	FindByUsernameFunc       func(ctx context.Context, username string) (*domain.Consultant, error)
	FindByEmailFunc          func(ctx context.Context, email string) (*domain.Consultant, error)
	FindByAgencyFunc         func(ctx context.Context, agencyID int64) ([]domain.Consultant, error)
	CreateFunc               func(ctx context.Context, c *domain.Consultant) (*domain.Consultant, error)
	SaveAgencyMembershipFunc func(ctx context.Context, consultantID uuid.UUID, agencyID int64) error

	lookups     []string
	created     []domain.Consultant
	memberships []int64
}

func (m *mockConsultantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Consultant, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockConsultantRepo) FindByUsername(ctx context.Context, username string) (*domain.Consultant, error) {
	m.lookups = append(m.lookups, "username "+username)
	return m.FindByUsernameFunc(ctx, username)
}

func (m *mockConsultantRepo) FindByEmail(ctx context.Context, email string) (*domain.Consultant, error) {
	m.lookups = append(m.lookups, "email "+email)
	return m.FindByEmailFunc(ctx, email)
}

func (m *mockConsultantRepo) FindByAgency(ctx context.Context, agencyID int64) ([]domain.Consultant, error) {
	return m.FindByAgencyFunc(ctx, agencyID)
}

func (m *mockConsultantRepo) Create(ctx context.Context, c *domain.Consultant) (*domain.Consultant, error) {
	m.created = append(m.created, *c)
	return m.CreateFunc(ctx, c)
}

func (m *mockConsultantRepo) SaveAgencyMembership(ctx context.Context, consultantID uuid.UUID, agencyID int64) error {
	m.memberships = append(m.memberships, agencyID)
	return m.SaveAgencyMembershipFunc(ctx, consultantID, agencyID)
}

type mockSessionRepo struct {
	CreateFunc                        func(ctx context.Context, s *domain.Session) (*domain.Session, error)
	UpdateRoomsFunc                   func(ctx context.Context, id uuid.UUID, chatRoomID string, feedbackRoomID *string) error
	FindOpenForAgenciesFunc           func(ctx context.Context, agencyIDs []int64) ([]domain.Session, error)
	FindInProgressTeamForAgenciesFunc func(ctx context.Context, agencyIDs []int64) ([]domain.Session, error)

	created []domain.Session
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	m.created = append(m.created, *s)
	return m.CreateFunc(ctx, s)
}

func (m *mockSessionRepo) UpdateRooms(ctx context.Context, id uuid.UUID, chatRoomID string, feedbackRoomID *string) error {
	return m.UpdateRoomsFunc(ctx, id, chatRoomID, feedbackRoomID)
}

func (m *mockSessionRepo) FindOpenForAgencies(ctx context.Context, agencyIDs []int64) ([]domain.Session, error) {
	return m.FindOpenForAgenciesFunc(ctx, agencyIDs)
}

func (m *mockSessionRepo) FindInProgressTeamForAgencies(ctx context.Context, agencyIDs []int64) ([]domain.Session, error) {
	return m.FindInProgressTeamForAgenciesFunc(ctx, agencyIDs)
}

type mockTxManager struct {
	RunInTxFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunInTxFunc != nil {
		return m.RunInTxFunc(ctx, fn)
	}
	// Default: pass-through (no real transaction).
	return fn(ctx)
}

type recordingAudit struct {
	entries []domain.AuditEntry
}

func (r *recordingAudit) Write(_ context.Context, e domain.AuditEntry) {
	r.entries = append(r.entries, e)
}

type recordingSteps struct {
	steps []string
}

func (r *recordingSteps) ObserveStep(_ domain.Variant, step Step, _ time.Duration, kind Kind) {
	r.steps = append(r.steps, fmt.Sprintf("%s:%s", step, kind))
}
