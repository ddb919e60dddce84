package domain

import (
	"github.com/google/uuid"
)

// RecordBase holds the fields shared by every validated import record.
type RecordBase struct {
	Row               int
	LegacyID          *int64
	Username          string
	UsernameEncoded   string
	Email             *string
	Password          string
	PasswordGenerated bool
}

// Base returns the shared part of the record.
func (r RecordBase) Base() RecordBase { return r }

// ImportRecord is implemented by AskerRecord, AskerWithoutSessionRecord and
// ConsultantRecord.
type ImportRecord interface {
	Base() RecordBase
	Variant() Variant
}

// AskerRecord describes an asker that gets an in-progress session.
type AskerRecord struct {
	RecordBase
	ConsultantID *uuid.UUID
	Postcode     string
	AgencyID     int64
}

func (AskerRecord) Variant() Variant { return VariantAsker }

// AskerWithoutSessionRecord describes an asker linked to an agency only.
type AskerWithoutSessionRecord struct {
	RecordBase
	Postcode string
	AgencyID int64
}

func (AskerWithoutSessionRecord) Variant() Variant { return VariantAskerWithoutSession }

// AgencyRoleSet pairs an agency with the role set the consultant holds there.
type AgencyRoleSet struct {
	AgencyID int64
	RoleSet  RoleSetName
}

// ConsultantRecord describes a consultant and its agency memberships.
type ConsultantRecord struct {
	RecordBase
	FirstName      string
	LastName       string
	AgencyRoleSets []AgencyRoleSet
	Absent         bool
	AbsenceMessage *string
	TeamConsultant bool
}

func (ConsultantRecord) Variant() Variant { return VariantConsultant }

// AgencyIDs returns the distinct agency ids in input order.
func (r ConsultantRecord) AgencyIDs() []int64 {
	seen := make(map[int64]bool, len(r.AgencyRoleSets))
	ids := make([]int64, 0, len(r.AgencyRoleSets))
	for _, ar := range r.AgencyRoleSets {
		if seen[ar.AgencyID] {
			continue
		}
		seen[ar.AgencyID] = true
		ids = append(ids, ar.AgencyID)
	}
	return ids
}
