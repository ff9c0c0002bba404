package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersionsSortedAndFiltered(t *testing.T) {
	files := fstest.MapFS{
		"migrations/0002_more.sql": {Data: []byte("SELECT 1")},
		"migrations/0001_init.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":     {Data: []byte("notes")},
	}

	versions, err := migrationVersions(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_more.sql"}, versions)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	versions, err := migrationVersions(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_init.sql", versions[0])

	body, err := migrationFiles.ReadFile("migrations/" + versions[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "product_unit_history")
}
