package consultingtype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/account-import/internal/domain"
)

func TestLoadDir(t *testing.T) {
	t.Parallel()

	reg, err := LoadDir("testdata")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	sucht, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "suchtberatung", sucht.Slug)
	assert.True(t, sucht.LanguageFormal)
	assert.True(t, sucht.FeedbackChat)
	assert.True(t, sucht.WelcomeMessage.Enabled)
	assert.Equal(t, "Hallo alice, schön, dass Sie da sind.", sucht.WelcomeMessage.Render("alice"))

	roles, err := sucht.ConsultantRoles.Roles("main")
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleConsultant, domain.RoleMainConsultant}, roles)

	u25, err := reg.Get(2)
	require.NoError(t, err)
	assert.False(t, u25.FeedbackChat)
	assert.False(t, u25.WelcomeMessage.Enabled)

	_, err = u25.ConsultantRoles.Roles("main")
	assert.ErrorIs(t, err, domain.ErrUnknownRoleSet)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	t.Parallel()

	reg, err := New()
	require.NoError(t, err)

	_, err = reg.Get(42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNew_DuplicateID(t *testing.T) {
	t.Parallel()

	_, err := New(domain.ConsultingTypeSettings{ID: 1}, domain.ConsultingTypeSettings{ID: 1})
	assert.Error(t, err)
}

func TestLoadDir_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadDir_DuplicateAcrossFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := []byte("id: 3\nslug: a\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), doc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), doc, 0o644))

	_, err := LoadDir(dir)
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "missing id", doc: "slug: x\n"},
		{name: "unknown key", doc: "id: 1\nfeedback: true\n"},
		{name: "unknown role", doc: "id: 1\nconsultant_roles:\n  main: [consultant, admin]\n"},
		{name: "welcome enabled without text", doc: "id: 1\nwelcome_message:\n  enabled: true\n"},
		{name: "malformed", doc: "id: [1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
