package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountProfile is what the identity provider needs to create an account.
type AccountProfile struct {
	Username  string
	Email     *string
	FirstName string
	LastName  string
}

// ProvisionedAccount is an identity-provider account created for a row.
type ProvisionedAccount struct {
	AccountID string
	Password  string
}

// ChatCredentials identify a logged-in chat-backend user.
type ChatCredentials struct {
	UserID string
	Token  string
}

// IsZero reports whether the credentials are empty.
func (c ChatCredentials) IsZero() bool {
	return c.UserID == "" && c.Token == ""
}

// ResourceKind names an external or persisted resource created by a row.
type ResourceKind string

const (
	ResourceIdentityAccount ResourceKind = "identity_account"
	ResourceChatUser        ResourceKind = "chat_user"
	ResourceUser            ResourceKind = "user"
	ResourceConsultant      ResourceKind = "consultant"
	ResourceSession         ResourceKind = "session"
	ResourceChatRoom        ResourceKind = "chat_room"
	ResourceFeedbackRoom    ResourceKind = "feedback_room"
)

// Resource is one thing a row created. Rows are never rolled back, so the
// resources of a failed row are reported in its audit entry.
type Resource struct {
	Kind ResourceKind
	ID   string
}

func (r Resource) String() string { return string(r.Kind) + ":" + r.ID }

// AuditEntry is one immutable line of the import protocol.
type AuditEntry struct {
	Time       time.Time
	Row        int
	LegacyID   *int64
	Username   string
	Status     AuditStatus
	Kind       string
	InternalID string
	Reason     string
	Partial    []Resource
}

// ImportRun is the bookkeeping record of one batch run.
type ImportRun struct {
	ID         uuid.UUID
	Variant    Variant
	SourcePath string
	LogPath    string
	Status     ImportRunStatus
	Processed  int
	Succeeded  int
	Skipped    int
	Failed     int
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}
