package shared_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/domain"
	"stayhub/internal/shared"
)

func TestLoadSources_EmptyPathUsesDefaults(t *testing.T) {
	got, err := shared.LoadSources("")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "source1", got[0].Name)
	assert.Equal(t, "source2", got[1].Name)
}

func TestLoadSources_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - name: source1
    url: https://example.com/a.json
  - name: partner
    url: https://example.com/b.json
    type: json
`), 0o600))

	got, err := shared.LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.Source{
		{Name: "source1", URL: "https://example.com/a.json", Type: "json"},
		{Name: "partner", URL: "https://example.com/b.json", Type: "json"},
	}, got)
}

func TestParseSources_Rejects(t *testing.T) {
	cases := map[string]string{
		"duplicate names": `
sources:
  - {name: a, url: "https://example.com/1"}
  - {name: a, url: "https://example.com/2"}`,
		"bad url": `
sources:
  - {name: a, url: "not a url"}`,
		"unknown type": `
sources:
  - {name: a, url: "https://example.com/1", type: csv}`,
		"empty": `sources: []`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := shared.ParseSources([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestParseSources_BadYAML(t *testing.T) {
	_, err := shared.ParseSources([]byte("sources: [\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrInvalidInput))
}
