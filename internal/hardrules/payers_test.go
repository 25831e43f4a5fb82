package hardrules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePayer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fondo nacional magisterio", "FONDO_NACIONAL_MAGISTERIO"},
		{"FOMAG", "FOMAG"},
		{"Secretaria Educacion Narino", "SECRETARIA_EDUCACION_NARINO"},
		{"secretaría educación nariño", "SECRETARÍA_EDUCACIÓN_NARIÑO"},
		{" fomag", "_FOMAG"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePayer(tt.in))
		})
	}
}

func TestDefaultPayers(t *testing.T) {
	payers := DefaultPayers()

	assert.Equal(t, 34, payers.Len())
	assert.True(t, payers.Authorized("fondo nacional magisterio"))
	assert.True(t, payers.Authorized("FIDUPREVISORA"))
	assert.True(t, payers.Authorized("secretaria educacion la guajira"))
	assert.False(t, payers.Authorized("EMPRESA PRIVADA"))
	assert.False(t, payers.Authorized(" FOMAG"))
	assert.False(t, payers.Authorized(""))

	names := payers.Names()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "FOMAG")
}

func TestLoadPayers(t *testing.T) {
	dir := t.TempDir()

	t.Run("Valid", func(t *testing.T) {
		path := filepath.Join(dir, "payers.yaml")
		require.NoError(t, os.WriteFile(path, []byte("payers:\n  - acme corp\n  - FOMAG\n"), 0o600))

		payers, err := LoadPayers(path)
		require.NoError(t, err)
		assert.Equal(t, 2, payers.Len())
		assert.True(t, payers.Authorized("ACME CORP"))
		assert.False(t, payers.Authorized("FIDUPREVISORA"))
	})

	t.Run("Empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("payers: []\n"), 0o600))

		_, err := LoadPayers(path)
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("payers: {not: [a list"), 0o600))

		_, err := LoadPayers(path)
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadPayers(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
