package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studyforge/bookqa/pkg/component/postgres"
)

func TestBuildDSN(t *testing.T) {
	opts := postgres.NewOptions()
	opts.Host = "db.internal"
	opts.Port = 5433
	opts.Username = "svc"
	opts.Password = "plain"
	opts.Database = "bookqa"

	dsn := postgres.BuildDSN(opts)
	assert.Equal(t, "host=db.internal port=5433 user=svc password=plain dbname=bookqa sslmode=disable", dsn)
}

func TestBuildDSNEscapesPassword(t *testing.T) {
	opts := postgres.NewOptions()
	opts.Password = "it's secret"

	dsn := postgres.BuildDSN(opts)
	assert.Contains(t, dsn, `password='it\'s secret'`)
}

func TestBuildDSNEmptyPassword(t *testing.T) {
	opts := postgres.NewOptions()
	dsn := postgres.BuildDSN(opts)
	assert.Contains(t, dsn, "password=''")
}

func TestValidateRequiresDatabase(t *testing.T) {
	opts := postgres.NewOptions()
	opts.Database = ""
	assert.Error(t, opts.Validate())

	opts.Database = "bookqa"
	assert.NoError(t, opts.Validate())
}
