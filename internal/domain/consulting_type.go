package domain

import (
	"fmt"
	"strings"
)

// WelcomeMessagePlaceholder is replaced by the asker's plain username.
const WelcomeMessagePlaceholder = "${username}"

// RoleSetName keys a named set of consultant roles, e.g. "main" or "leiter".
type RoleSetName string

func (n RoleSetName) String() string { return string(n) }

// RoleSets is the per-consulting-type table of consultant role sets.
type RoleSets map[RoleSetName][]Role

// Roles returns the roles of the named set, or ErrUnknownRoleSet.
func (r RoleSets) Roles(name RoleSetName) ([]Role, error) {
	roles, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("role set %q: %w", name, ErrUnknownRoleSet)
	}
	return roles, nil
}

// WelcomeMessage configures the message posted into a new asker room.
type WelcomeMessage struct {
	Enabled bool
	Text    string
}

// Render substitutes the username into the template.
func (w WelcomeMessage) Render(username string) string {
	return strings.ReplaceAll(w.Text, WelcomeMessagePlaceholder, username)
}

// ConsultingTypeSettings is the configuration of one consulting type.
type ConsultingTypeSettings struct {
	ID              int
	Slug            string
	LanguageFormal  bool
	FeedbackChat    bool
	WelcomeMessage  WelcomeMessage
	ConsultantRoles RoleSets
}
