package migrations

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpNilDB(t *testing.T) {
	err := Up(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is nil")
}

func TestUpDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// No expectations registered: goose's first version-table query fails,
	// which must surface as a wrapped migration error.
	_ = mock

	err = Up(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration error")
}
