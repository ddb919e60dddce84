package testhelper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/account-import/internal/domain"
)

// agencySeq hands out agency ids; tests share one database, so ids must not
// collide across packages running in the same process.
var agencySeq atomic.Int64

func init() {
	agencySeq.Store(1_000_000_000 + time.Now().UnixNano()%1_000_000_000)
}

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedAgency creates an agency. teamAgency and consultingTypeID are taken
// as given; the id is generated.
func SeedAgency(t *testing.T, pool *pgxpool.Pool, consultingTypeID int, teamAgency bool) domain.Agency {
	t.Helper()

	agency := domain.Agency{
		ID:               agencySeq.Add(1),
		Name:             "Agency " + uniqueSuffix(),
		ConsultingTypeID: consultingTypeID,
		TeamAgency:       teamAgency,
		Postcode:         "10115",
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO agencies (id, name, consulting_type_id, team_agency, postcode, offline)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		agency.ID, agency.Name, agency.ConsultingTypeID, agency.TeamAgency, agency.Postcode, agency.Offline,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedAgency: %v", err)
	}

	return agency
}

// SeedConsultant creates a consultant with a live membership in each of agencyIDs.
func SeedConsultant(t *testing.T, pool *pgxpool.Pool, agencyIDs ...int64) domain.Consultant {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	username := "consultant-" + suffix
	c := domain.Consultant{
		ID:                uuid.New(),
		ExternalAccountID: "kc-" + suffix,
		Username:          username,
		UsernameEncoded:   domain.EncodeUsername(username),
		FirstName:         "Test",
		LastName:          "Consultant " + suffix,
		Email:             username + "@example.org",
		ChatUserID:        "rc-" + suffix,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO consultants (id, external_account_id, username, username_encoded, first_name, last_name,
		                          email, chat_user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.ExternalAccountID, c.Username, c.UsernameEncoded, c.FirstName, c.LastName,
		c.Email, c.ChatUserID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedConsultant insert consultant: %v", err)
	}

	for _, agencyID := range agencyIDs {
		_, err = pool.Exec(ctx,
			`INSERT INTO consultant_agencies (id, consultant_id, agency_id) VALUES ($1, $2, $3)`,
			uuid.New(), c.ID, agencyID,
		)
		if err != nil {
			t.Fatalf("testhelper: SeedConsultant insert membership: %v", err)
		}
	}

	return c
}

// SeedUser creates an asker account.
func SeedUser(t *testing.T, pool *pgxpool.Pool) domain.User {
	t.Helper()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	username := "asker-" + suffix
	u := domain.User{
		ID:                uuid.New(),
		ExternalAccountID: "kc-" + suffix,
		Username:          username,
		UsernameEncoded:   domain.EncodeUsername(username),
		ChatUserID:        "rc-" + suffix,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, external_account_id, username, username_encoded, chat_user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.ExternalAccountID, u.Username, u.UsernameEncoded, u.ChatUserID, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedUser: %v", err)
	}

	return u
}

// SeedSession creates a session for a freshly seeded asker. roomID may be
// empty for a session without a chat room.
func SeedSession(t *testing.T, pool *pgxpool.Pool, agency domain.Agency, status domain.SessionStatus, teamSession bool, roomID string) domain.Session {
	t.Helper()

	user := SeedUser(t, pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	s := domain.Session{
		ID:               uuid.New(),
		UserID:           user.ID,
		AgencyID:         agency.ID,
		ConsultingTypeID: agency.ConsultingTypeID,
		Postcode:         agency.Postcode,
		Status:           status,
		IsTeamSession:    teamSession,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if roomID != "" {
		s.ChatRoomID = &roomID
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO sessions (id, user_id, agency_id, consulting_type_id, postcode, status, is_team_session,
		                       chat_room_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.AgencyID, s.ConsultingTypeID, s.Postcode, string(s.Status), s.IsTeamSession,
		s.ChatRoomID, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSession: %v", err)
	}

	return s
}
