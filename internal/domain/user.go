package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a persisted asker account. ExternalAccountID links it to the
// identity provider and is never empty for a stored user.
type User struct {
	ID                uuid.UUID
	ExternalAccountID string
	LegacyID          *int64
	Username          string
	UsernameEncoded   string
	Email             *string
	ChatUserID        string
	LanguageFormal    bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserAgency links an asker without a session to the agency that imported it.
type UserAgency struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	AgencyID  int64
	CreatedAt time.Time
}

// Consultant is a persisted consultant account.
type Consultant struct {
	ID                uuid.UUID
	ExternalAccountID string
	LegacyID          *int64
	Username          string
	UsernameEncoded   string
	FirstName         string
	LastName          string
	Email             string
	ChatUserID        string
	Absent            bool
	AbsenceMessage    *string
	TeamConsultant    bool
	LanguageFormal    bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// ConsultantAgency is the membership of a consultant in an agency. At most
// one non-deleted membership exists per (ConsultantID, AgencyID).
type ConsultantAgency struct {
	ID           uuid.UUID
	ConsultantID uuid.UUID
	AgencyID     int64
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// Agency is a counselling agency. Agencies are read-only for the importer.
type Agency struct {
	ID               int64
	Name             string
	ConsultingTypeID int
	TeamAgency       bool
	Postcode         string
	Offline          bool
}

// Session is a counselling session (an "enquiry" while its status is NEW).
type Session struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	ConsultantID       *uuid.UUID
	AgencyID           int64
	ConsultingTypeID   int
	Postcode           string
	Status             SessionStatus
	IsTeamSession      bool
	ChatRoomID         *string
	FeedbackChatRoomID *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasChatRoom reports whether the session is already bound to a chat room.
func (s *Session) HasChatRoom() bool {
	return s.ChatRoomID != nil && *s.ChatRoomID != ""
}
