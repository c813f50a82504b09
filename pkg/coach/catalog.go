package coach

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Language is an interview language with its recognition locale and voice
type Language struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Locale string `yaml:"locale" json:"locale"`
	Voice  string `yaml:"voice" json:"voice"`
}

type Role struct {
	ID    string   `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Focus []string `yaml:"focus" json:"focus"`
}

type Level struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Catalog lists everything the user can pick before an interview
type Catalog struct {
	Languages []Language `yaml:"languages" json:"languages"`
	Roles     []Role     `yaml:"roles" json:"roles"`
	Levels    []Level    `yaml:"levels" json:"levels"`
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file; an empty path yields the built-in one.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Wrapf(err, ErrCodeConfigInvalid, "failed to read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and checks a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, Wrapf(err, ErrCodeConfigInvalid, "invalid catalog yaml")
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) check() error {
	if len(c.Languages) == 0 || len(c.Roles) == 0 || len(c.Levels) == 0 {
		return NewConfigError("catalog needs at least one language, role and level")
	}

	seen := map[string]bool{}
	dup := func(kind, id string) error {
		key := kind + "/" + id
		if id == "" {
			return NewConfigError(fmt.Sprintf("catalog %s without id", kind))
		}
		if seen[key] {
			return NewConfigError(fmt.Sprintf("duplicate %s id %q", kind, id))
		}
		seen[key] = true
		return nil
	}

	for _, l := range c.Languages {
		if err := dup("language", l.ID); err != nil {
			return err
		}
		if l.Locale == "" {
			return NewConfigError(fmt.Sprintf("language %q has no locale", l.ID))
		}
	}
	for _, r := range c.Roles {
		if err := dup("role", r.ID); err != nil {
			return err
		}
	}
	for _, l := range c.Levels {
		if err := dup("level", l.ID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) Language(id string) (Language, error) {
	for _, l := range c.Languages {
		if l.ID == id {
			return l, nil
		}
	}
	return Language{}, NewConfigError(fmt.Sprintf("unknown language %q", id)).AddDetail("language", id)
}

func (c *Catalog) Role(id string) (Role, error) {
	for _, r := range c.Roles {
		if r.ID == id {
			return r, nil
		}
	}
	return Role{}, NewConfigError(fmt.Sprintf("unknown role %q", id)).AddDetail("role", id)
}

func (c *Catalog) Level(id string) (Level, error) {
	for _, l := range c.Levels {
		if l.ID == id {
			return l, nil
		}
	}
	return Level{}, NewConfigError(fmt.Sprintf("unknown level %q", id)).AddDetail("level", id)
}

// Profile is a selection resolved against the catalog
type Profile struct {
	Language Language
	Role     Role
	Level    Level
}

// Resolve validates sel and returns the matching entries
func (c *Catalog) Resolve(sel Selection) (*Profile, error) {
	lang, err := c.Language(sel.Language)
	if err != nil {
		return nil, err
	}
	role, err := c.Role(sel.Role)
	if err != nil {
		return nil, err
	}
	level, err := c.Level(sel.Level)
	if err != nil {
		return nil, err
	}
	return &Profile{Language: lang, Role: role, Level: level}, nil
}

// Validate reports whether every part of sel exists in the catalog
func (c *Catalog) Validate(sel Selection) error {
	_, err := c.Resolve(sel)
	return err
}
