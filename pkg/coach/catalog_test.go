package coach

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.NotEmpty(t, c.Languages)
	require.NotEmpty(t, c.Roles)
	require.NotEmpty(t, c.Levels)

	en, err := c.Language("en")
	require.NoError(t, err)
	assert.Equal(t, "en-US", en.Locale)
	assert.NotEmpty(t, en.Voice)

	p, err := c.Resolve(Selection{Language: "es", Role: "backend", Level: "senior"})
	require.NoError(t, err)
	assert.Equal(t, "Backend Developer", p.Role.Name)
	assert.Equal(t, "es-ES", p.Language.Locale)
}

func TestCatalog_UnknownIDs(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name string
		sel  Selection
	}{
		{"language", Selection{Language: "xx", Role: "backend", Level: "junior"}},
		{"role", Selection{Language: "en", Role: "astronaut", Level: "junior"}},
		{"level", Selection{Language: "en", Role: "backend", Level: "godlike"}},
		{"empty", Selection{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.sel)
			require.Error(t, err)
			assert.True(t, IsErrorCode(err, ErrCodeConfigInvalid))
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Roles)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
languages:
  - {id: nl, name: Nederlands, locale: nl-NL, voice: Kore}
roles:
  - {id: qa, name: QA Engineer, focus: [test strategy]}
levels:
  - {id: mid, name: Mid-level, description: ok}
`), 0o644))

	c, err = LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Languages, 1)
	assert.Equal(t, []string{"test strategy"}, c.Roles[0].Focus)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, IsErrorCode(err, ErrCodeConfigInvalid))
}

func TestParseCatalog_Rejects(t *testing.T) {
	dup := []byte(`
languages:
  - {id: en, name: English, locale: en-US}
  - {id: en, name: English again, locale: en-GB}
roles: [{id: a, name: A}]
levels: [{id: b, name: B}]
`)
	_, err := ParseCatalog(dup)
	assert.ErrorContains(t, err, "duplicate language")

	_, err = ParseCatalog([]byte("languages: []\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("::: not yaml"))
	assert.Error(t, err)
}
