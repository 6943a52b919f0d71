package mysql

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

func TestMySQLStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		gotCfg Config
		closed bool
		fake   = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return fake, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u:p@tcp(db:3306)/imports", MaxConns: 3})
	require.NoError(t, err)
	assert.Equal(t, Config{DSN: "u:p@tcp(db:3306)/imports", MaxConns: 3}, gotCfg)

	w, ok := repo.(*wrappedRepo)
	require.True(t, ok)
	assert.Same(t, fake, w.Repository)

	repo.Close()
	assert.True(t, closed)
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("u:p@tcp(db:3306)/imports")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	dsn, err = normalizeDSN("u:p@tcp(db:3306)/imports?charset=latin1")
	require.NoError(t, err)
	assert.Contains(t, dsn, "charset=latin1")

	_, err = normalizeDSN("u:p@tcp(db:3306)imports")
	assert.Error(t, err)
}

func TestUpsertStatements(t *testing.T) {
	d := dialect{}
	q := d.Upsert("unclaimed_properties", "id", []string{"id", "owner_name"}, []string{"owner_name"}, 2, storage.ConflictUpdate)
	assert.Equal(t, "INSERT INTO `unclaimed_properties` (`id`, `owner_name`) VALUES (?, ?), (?, ?) ON DUPLICATE KEY UPDATE `owner_name` = VALUES(`owner_name`)", q)

	q = d.Upsert("unclaimed_properties", "id", []string{"id"}, nil, 1, storage.ConflictIgnore)
	assert.Equal(t, "INSERT IGNORE INTO `unclaimed_properties` (`id`) VALUES (?)", q)
}

func TestSchemaInlinesIndexes(t *testing.T) {
	stmts, err := dialect{}.Schema()
	require.NoError(t, err)
	require.Len(t, stmts, 4)
	all := strings.Join(stmts, "\n")
	assert.Contains(t, all, "`row_number` INT")
	assert.Contains(t, all, "INDEX `idx_discarded_records_import_id` (`import_id`)")
	assert.NotContains(t, all, "CREATE INDEX")
}
