package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutsync/internal/storage"
)

func TestAdapterRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u:p@tcp(localhost:3306)/sigtap", Schema: "sigtap"})
	require.NoError(t, err)
	assert.Equal(t, "sigtap", got.Schema)
	repo.Close()
	assert.True(t, closed)
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "not a dsn"})
	assert.ErrorContains(t, err, "mysql dsn")
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1000, batchSize(3))
	assert.Equal(t, 655, batchSize(100))
	assert.Equal(t, 1, batchSize(70000))
	assert.Equal(t, "`a``b`", myIdent("a`b"))
	assert.Equal(t, "`t`", (&Repository{}).fqn("t"))
	assert.Equal(t, "`db`.`t`", (&Repository{cfg: Config{Schema: "db"}}).fqn("t"))
}
