package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/followup/internal/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFleet_YAML(t *testing.T) {
	path := writeFile(t, "fleet.yaml", `
all: [0835, "1207", 3708]
all_A320: [0835]
new: [3708]
rev:
  - 1207
extra: [ignored]
`)

	fleet, err := Files{}.LoadFleet(path)
	require.NoError(t, err)
	assert.Equal(t, []core.UnitCode{"0835", "1207", "3708"}, fleet.All)
	assert.Equal(t, []core.UnitCode{"0835"}, fleet.A320)
	assert.Equal(t, []core.UnitCode{"3708", "1207"}, fleet.Current())
}

func TestLoadFleet_JSON(t *testing.T) {
	path := writeFile(t, "msn.json", `{"all": ["1207", "3708"], "all_A320": [], "new": ["3708"], "rev": ["1207"]}`)

	fleet, err := Files{}.LoadFleet(path)
	require.NoError(t, err)
	assert.True(t, fleet.Revision().Has("1207"))
	assert.Empty(t, fleet.A320)
}

func TestLoadFleet_MissingKeys(t *testing.T) {
	path := writeFile(t, "fleet.yaml", "all: [\"1207\"]\nnew: []\n")

	_, err := Files{}.LoadFleet(path)
	var missing *core.MissingKeysError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{core.PartitionA320, core.PartitionRev}, missing.Missing)
}

func TestLoadFleet_NotAList(t *testing.T) {
	path := writeFile(t, "fleet.yaml", "all: [[\"1207\"]]\nall_A320: []\nnew: []\nrev: []\n")

	_, err := Files{}.LoadFleet(path)
	assert.ErrorContains(t, err, "must be a list of values")
}

func TestLoadFleet_MissingFile(t *testing.T) {
	_, err := Files{}.LoadFleet(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadAuthors(t *testing.T) {
	path := writeFile(t, "authors.yaml", "IPC: [ana, bo]\nSRM: [cy]\nILLU: []\n")

	authors, err := Files{}.LoadAuthors(path)
	require.NoError(t, err)
	assert.Equal(t, core.Authors{IPC: []string{"ana", "bo"}, SRM: []string{"cy"}, ILLU: []string{}}, authors)
}

func TestWriteSamples(t *testing.T) {
	dir := t.TempDir()

	paths, err := WriteSamples(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	fleet, err := Files{}.LoadFleet(paths[0])
	require.NoError(t, err)
	assert.Contains(t, fleet.All, core.UnitCode("0835"))

	_, err = Files{}.LoadAuthors(paths[1])
	require.NoError(t, err)

	_, err = WriteSamples(dir)
	assert.ErrorContains(t, err, "already exists")
}

func TestLoadAuthors_WindowsExport(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("IPC: [Jos\xe9]\nSRM: []\nILLU: [Ann]\n")...)
	path := writeFile(t, "authors.json", string(content))

	authors, err := Files{}.LoadAuthors(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jos?"}, authors.IPC)
	assert.Equal(t, []string{"Ann"}, authors.ILLU)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("all: []"), "all: []"},
		{"bom", []byte("\xEF\xBB\xBFall: []"), "all: []"},
		{"only bom", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"partial bom kept", []byte{0xEF, 0xBB, 'a'}, "??a"},
		{"valid multibyte", []byte("Zoë"), "Zoë"},
		{"latin-1 byte", []byte("Zo\xeb"), "Zo?"},
		{"truncated sequence", []byte("ab\xe2\x82"), "ab??"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(cleanText(tt.in)))
		})
	}
}
