package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEnvValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
OPENAI_API_KEY=sk-abc
DATABASE_URL = "postgres://u:p@localhost:5432/leads"
`), 0644))

	got, err := readEnvValue(path, "DATABASE_URL")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/leads", got)

	_, err = readEnvValue(path, "MISSING")
	assert.Error(t, err)
}

func TestFindEnvFileWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("DATABASE_URL=x\n"), 0644))

	got, err := findEnvFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".env"), got)
}

func TestSchemaStatementsIdempotent(t *testing.T) {
	for _, stmt := range schemaStatements {
		assert.Regexp(t, `IF NOT EXISTS`, stmt)
	}
}
