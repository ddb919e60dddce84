// Package consultingtype loads consulting-type settings from YAML files.
// Each file describes one consulting type; the registry is read once at
// start-up and is immutable afterwards.
package consultingtype

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/account-import/internal/domain"
)

// MaxFileSize bounds a single settings file.
const MaxFileSize = 1 << 20

// fileYAML is the on-disk shape of one consulting type.
type fileYAML struct {
	ID             int                 `yaml:"id"`
	Slug           string              `yaml:"slug"`
	LanguageFormal bool                `yaml:"language_formal"`
	FeedbackChat   bool                `yaml:"feedback_chat"`
	WelcomeMessage welcomeMessageYAML  `yaml:"welcome_message"`
	Roles          map[string][]string `yaml:"consultant_roles"`
}

type welcomeMessageYAML struct {
	Enabled bool   `yaml:"enabled"`
	Text    string `yaml:"text"`
}

// Registry is an in-memory table of consulting-type settings keyed by id.
type Registry struct {
	byID map[int]domain.ConsultingTypeSettings
}

// New builds a registry from already parsed settings. Duplicate ids are rejected.
func New(settings ...domain.ConsultingTypeSettings) (*Registry, error) {
	r := &Registry{byID: make(map[int]domain.ConsultingTypeSettings, len(settings))}
	for _, s := range settings {
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("consulting type %d: defined twice", s.ID)
		}
		r.byID[s.ID] = s
	}
	return r, nil
}

// LoadDir reads every *.yaml / *.yml file in dir.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("consulting types: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	settings := make([]domain.ConsultingTypeSettings, 0, len(names))
	for _, name := range names {
		s, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}

	return New(settings...)
}

// Get returns the settings of a consulting type, or an error wrapping
// domain.ErrNotFound.
func (r *Registry) Get(id int) (*domain.ConsultingTypeSettings, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("consulting type %d: %w", id, domain.ErrNotFound)
	}
	return &s, nil
}

// Len returns the number of registered consulting types.
func (r *Registry) Len() int { return len(r.byID) }

func loadFile(path string) (domain.ConsultingTypeSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ConsultingTypeSettings{}, fmt.Errorf("consulting types: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return domain.ConsultingTypeSettings{}, fmt.Errorf("consulting types: read %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return domain.ConsultingTypeSettings{}, fmt.Errorf("consulting types: %s exceeds %d bytes", path, MaxFileSize)
	}

	s, err := Parse(data)
	if err != nil {
		return domain.ConsultingTypeSettings{}, fmt.Errorf("consulting types: %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// Parse decodes and validates one consulting-type document. Unknown keys
// and unknown role names are errors, so a typo cannot silently drop a role.
func Parse(data []byte) (domain.ConsultingTypeSettings, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f fileYAML
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ConsultingTypeSettings{}, fmt.Errorf("empty document")
		}
		return domain.ConsultingTypeSettings{}, fmt.Errorf("decode: %w", err)
	}

	if f.ID <= 0 {
		return domain.ConsultingTypeSettings{}, fmt.Errorf("id must be > 0 (got %d)", f.ID)
	}
	if f.WelcomeMessage.Enabled && strings.TrimSpace(f.WelcomeMessage.Text) == "" {
		return domain.ConsultingTypeSettings{}, fmt.Errorf("welcome_message.text is required when enabled")
	}

	roleSets := make(domain.RoleSets, len(f.Roles))
	for name, roles := range f.Roles {
		if strings.TrimSpace(name) == "" {
			return domain.ConsultingTypeSettings{}, fmt.Errorf("consultant_roles: empty role set name")
		}
		set := make([]domain.Role, 0, len(roles))
		for _, raw := range roles {
			role := domain.Role(raw)
			if domain.AuthoritiesForRole(role) == nil {
				return domain.ConsultingTypeSettings{}, fmt.Errorf("consultant_roles.%s: unknown role %q", name, raw)
			}
			set = append(set, role)
		}
		roleSets[domain.RoleSetName(name)] = set
	}

	return domain.ConsultingTypeSettings{
		ID:             f.ID,
		Slug:           f.Slug,
		LanguageFormal: f.LanguageFormal,
		FeedbackChat:   f.FeedbackChat,
		WelcomeMessage: domain.WelcomeMessage{
			Enabled: f.WelcomeMessage.Enabled,
			Text:    f.WelcomeMessage.Text,
		},
		ConsultantRoles: roleSets,
	}, nil
}
