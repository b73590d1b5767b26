package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/models"
	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, conflict: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, conflict: true},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, conflict: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert claim: %w", &pgconn.PgError{Code: "23505"}), conflict: true},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}},
		{name: "plain error", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err)
			assert.Equal(t, tt.conflict, errors.Is(err, engine.ErrConflict))
		})
	}
	assert.NoError(t, mapError(nil))
}

func TestSkippedColumn(t *testing.T) {
	empty, err := encodeSkipped(nil)
	require.NoError(t, err)
	assert.False(t, empty.Valid)

	decoded, err := decodeSkipped(empty)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	entries := []models.SkipEntry{{RosterID: uuid.New()}, {RosterID: uuid.New(), Unit: 7}}
	raw, err := encodeSkipped(entries)
	require.NoError(t, err)
	assert.True(t, raw.Valid)

	decoded, err = decodeSkipped(raw)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)

	_, err = decodeSkipped(pqtype.NullRawMessage{RawMessage: []byte("{"), Valid: true})
	assert.Error(t, err)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "00001_create_draft_turns.sql", entries[0].Name())
	assert.Equal(t, "00002_create_draft_outbox.sql", entries[1].Name())
	assert.Equal(t, "00003_create_draft_selection_pool.sql", entries[2].Name())
	assert.Equal(t, "00004_add_turn_clock_generation.sql", entries[3].Name())
}
