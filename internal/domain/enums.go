package domain

// Variant identifies the shape of an import file and the provisioning plan
// that is run for each of its rows.
type Variant string

const (
	VariantAsker               Variant = "ASKER"
	VariantAskerWithoutSession Variant = "ASKER_WITHOUT_SESSION"
	VariantConsultant          Variant = "CONSULTANT"
)

func (v Variant) String() string { return string(v) }

func (v Variant) IsValid() bool {
	switch v {
	case VariantAsker, VariantAskerWithoutSession, VariantConsultant:
		return true
	}
	return false
}

// SessionStatus represents the lifecycle state of a counselling session.
type SessionStatus string

const (
	SessionStatusNew        SessionStatus = "NEW"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusDone       SessionStatus = "DONE"
)

func (s SessionStatus) String() string { return string(s) }

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusNew, SessionStatusInProgress, SessionStatusDone:
		return true
	}
	return false
}

// AuditStatus is the outcome recorded for one import row.
type AuditStatus string

const (
	AuditStatusSuccess   AuditStatus = "SUCCESS"
	AuditStatusValidated AuditStatus = "VALIDATED"
	AuditStatusSkipped   AuditStatus = "SKIPPED"
	AuditStatusFailed    AuditStatus = "FAILED"
	AuditStatusAborted   AuditStatus = "ABORTED"
)

func (s AuditStatus) String() string { return string(s) }

// ImportRunStatus is the final state of a batch run.
type ImportRunStatus string

const (
	ImportRunRunning   ImportRunStatus = "RUNNING"
	ImportRunCompleted ImportRunStatus = "COMPLETED"
	ImportRunAborted   ImportRunStatus = "ABORTED"
	ImportRunFailed    ImportRunStatus = "FAILED"
)

func (s ImportRunStatus) String() string { return string(s) }

// Role is an identity-provider realm role.
type Role string

const (
	RoleUser           Role = "user"
	RoleConsultant     Role = "consultant"
	RoleMainConsultant Role = "main-consultant"
)

func (r Role) String() string { return string(r) }

// Authority is a permission derived from one or more roles.
type Authority string

const (
	AuthorityViewAllFeedbackSessions Authority = "AUTHORIZATION_VIEW_ALL_FEEDBACK_SESSIONS"
	AuthorityViewAllPeerSessions     Authority = "AUTHORIZATION_VIEW_ALL_PEER_SESSIONS"
	AuthorityConsultantDefault       Authority = "AUTHORIZATION_CONSULTANT_DEFAULT"
	AuthorityUserDefault             Authority = "AUTHORIZATION_USER_DEFAULT"
)

func (a Authority) String() string { return string(a) }

// roleAuthorities maps every known role to the authorities it grants.
var roleAuthorities = map[Role][]Authority{
	RoleUser:           {AuthorityUserDefault},
	RoleConsultant:     {AuthorityConsultantDefault},
	RoleMainConsultant: {AuthorityViewAllFeedbackSessions, AuthorityViewAllPeerSessions},
}

// AuthoritiesForRole returns the authorities granted by role. Unknown roles
// grant nothing.
func AuthoritiesForRole(role Role) []Authority {
	return roleAuthorities[role]
}

// RolesGrant reports whether any of roles grants authority.
func RolesGrant(roles []Role, authority Authority) bool {
	for _, r := range roles {
		for _, a := range roleAuthorities[r] {
			if a == authority {
				return true
			}
		}
	}
	return false
}
