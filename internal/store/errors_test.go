package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	require.NoError(t, translate(nil))
	require.ErrorIs(t, translate(pgx.ErrNoRows), ErrNotFound)
	require.ErrorIs(t, translate(&pgconn.PgError{Code: pgUniqueViolation}), ErrDuplicate)

	other := errors.New("boom")
	require.Equal(t, other, translate(other))
}
