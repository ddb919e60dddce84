package provisioning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/account-import/internal/domain"
)

var (
	systemCreds    = domain.ChatCredentials{UserID: "sys-id", Token: "sys-tok"}
	technicalCreds = domain.ChatCredentials{UserID: "tech-id", Token: "tech-tok"}
	fixedNow       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// Agencies of the fixture:
//
//	10: consulting type 1, no feedback chat
//	20: consulting type 2, team agency, formal, no feedback chat
//	30: consulting type 3, feedback chat and welcome message
var (
	testAgencies = map[int64]domain.Agency{
		10: {ID: 10, Name: "Suchtberatung", ConsultingTypeID: 1},
		20: {ID: 20, Name: "U25 Team", ConsultingTypeID: 2, TeamAgency: true},
		30: {ID: 30, Name: "Schwangerschaft", ConsultingTypeID: 3},
	}
	testSettings = map[int]domain.ConsultingTypeSettings{
		1: {
			ID:   1,
			Slug: "suchtberatung",
			ConsultantRoles: domain.RoleSets{
				"main":    {domain.RoleConsultant, domain.RoleMainConsultant},
				"default": {domain.RoleConsultant},
			},
		},
		2: {
			ID:             2,
			Slug:           "u25",
			LanguageFormal: true,
			ConsultantRoles: domain.RoleSets{
				"default": {domain.RoleConsultant},
			},
		},
		3: {
			ID:           3,
			Slug:         "schwangerschaft",
			FeedbackChat: true,
			WelcomeMessage: domain.WelcomeMessage{
				Enabled: true,
				Text:    "Hallo ${username}, willkommen!",
			},
			ConsultantRoles: domain.RoleSets{
				"default": {domain.RoleConsultant},
			},
		},
	}
)

type fixture struct {
	identity    *mockIdentity
	chat        *mockChat
	agencies    *mockAgencyReader
	registry    *mockRegistry
	users       *mockUserRepo
	consultants *mockConsultantRepo
	sessions    *mockSessionRepo
	tx          *mockTxManager
	audit       *recordingAudit
	steps       *recordingSteps
	batch       *BatchContext
	orch        *Orchestrator
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires an orchestrator whose collaborators all succeed.
func newFixture(t *testing.T, variant domain.Variant) *fixture {
	t.Helper()

	f := &fixture{
		identity: &mockIdentity{
			IsUsernameAvailableFunc: func(context.Context, string) (bool, error) { return true, nil },
			CreateAccountFunc: func(_ context.Context, p domain.AccountProfile) (string, error) {
				return "kc-" + p.Username, nil
			},
			SetPasswordFunc:      func(context.Context, string, string) error { return nil },
			AssignRoleFunc:       func(context.Context, string, domain.Role) error { return nil },
			UserHasAuthorityFunc: func(context.Context, string, domain.Authority) (bool, error) { return false, nil },
		},
		chat: &mockChat{
			LoginFunc: func(_ context.Context, username, _ string) (domain.ChatCredentials, error) {
				return domain.ChatCredentials{UserID: "rc-" + username, Token: "tok-" + username}, nil
			},
			LogoutFunc: func(context.Context, domain.ChatCredentials) error { return nil },
			CreatePrivateRoomFunc: func(_ context.Context, _ domain.ChatCredentials, name string) (string, error) {
				return "room-" + name, nil
			},
			AddUserToRoomFunc:      func(context.Context, domain.ChatCredentials, string, string) error { return nil },
			RemoveUserFromRoomFunc: func(context.Context, domain.ChatCredentials, string, string) error { return nil },
			PurgeSystemMessagesFunc: func(context.Context, domain.ChatCredentials, string, time.Time, time.Time) error {
				return nil
			},
			PostMessageFunc: func(context.Context, domain.ChatCredentials, string, string) error { return nil },
		},
		agencies: &mockAgencyReader{
			GetByIDFunc: func(_ context.Context, id int64) (*domain.Agency, error) {
				a, ok := testAgencies[id]
				if !ok {
					return nil, fmt.Errorf("agency %d: %w", id, domain.ErrNotFound)
				}
				return &a, nil
			},
		},
		registry: &mockRegistry{
			GetFunc: func(id int) (*domain.ConsultingTypeSettings, error) {
				s, ok := testSettings[id]
				if !ok {
					return nil, fmt.Errorf("consulting type %d: %w", id, domain.ErrNotFound)
				}
				return &s, nil
			},
		},
		users: &mockUserRepo{
			CreateFunc: func(_ context.Context, u *domain.User) (*domain.User, error) {
				created := *u
				created.ID = uuid.New()
				return &created, nil
			},
			SaveUserAgencyFunc: func(context.Context, uuid.UUID, int64) error { return nil },
		},
		consultants: &mockConsultantRepo{
			GetByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Consultant, error) {
				return nil, fmt.Errorf("consultant %s: %w", id, domain.ErrNotFound)
			},
			FindByUsernameFunc: func(context.Context, string) (*domain.Consultant, error) {
				return nil, domain.ErrNotFound
			},
			FindByEmailFunc: func(context.Context, string) (*domain.Consultant, error) {
				return nil, domain.ErrNotFound
			},
			FindByAgencyFunc: func(context.Context, int64) ([]domain.Consultant, error) { return nil, nil },
			CreateFunc: func(_ context.Context, c *domain.Consultant) (*domain.Consultant, error) {
				created := *c
				created.ID = uuid.New()
				return &created, nil
			},
			SaveAgencyMembershipFunc: func(context.Context, uuid.UUID, int64) error { return nil },
		},
		sessions: &mockSessionRepo{
			CreateFunc: func(_ context.Context, s *domain.Session) (*domain.Session, error) {
				created := *s
				created.ID = uuid.New()
				return &created, nil
			},
			UpdateRoomsFunc: func(context.Context, uuid.UUID, string, *string) error { return nil },
			FindOpenForAgenciesFunc: func(context.Context, []int64) ([]domain.Session, error) {
				return nil, nil
			},
			FindInProgressTeamForAgenciesFunc: func(context.Context, []int64) ([]domain.Session, error) {
				return nil, nil
			},
		},
		tx:    &mockTxManager{},
		audit: &recordingAudit{},
		steps: &recordingSteps{},
	}

	f.batch = &BatchContext{
		ID:        uuid.New(),
		Variant:   variant,
		StartedAt: fixedNow,
		System:    systemCreds,
		Technical: technicalCreds,
		Audit:     f.audit,
		Steps:     f.steps,
	}

	f.orch = NewOrchestrator(newTestLogger(), f.identity, f.chat, f.agencies, f.registry,
		f.users, f.consultants, f.sessions, f.tx, Config{DefaultRole: domain.RoleUser, PurgeWindow: 24 * time.Hour})
	f.orch.now = func() time.Time { return fixedNow }

	return f
}

func (f *fixture) process(rec domain.ImportRecord) Outcome {
	return f.orch.Process(context.Background(), f.batch, rec)
}

func strPtr(s string) *string { return &s }

func base(row int, username string) domain.RecordBase {
	return domain.RecordBase{
		Row:               row,
		Username:          username,
		UsernameEncoded:   domain.EncodeUsername(username),
		Password:          "Xy7!pq2Lm",
		PasswordGenerated: true,
	}
}

func newAskerRecord(row int, username string, agencyID int64) domain.AskerRecord {
	return domain.AskerRecord{RecordBase: base(row, username), AgencyID: agencyID}
}

func newConsultantRecord(row int, username string, pairs ...domain.AgencyRoleSet) domain.ConsultantRecord {
	return domain.ConsultantRecord{
		RecordBase:     base(row, username),
		FirstName:      "Clara",
		LastName:       "Berg",
		AgencyRoleSets: pairs,
	}
}

func chatCallsWithPrefix(calls []string, prefix string) []string {
	var out []string
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
