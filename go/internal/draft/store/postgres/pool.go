package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SetSelectionPool replaces the selections automatic picks may choose from.
func (s *Store) SetSelectionPool(ctx context.Context, draftID uuid.UUID, selections []uuid.UUID) error {
	return s.beginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM draft_selection_pool WHERE draft_id = $1`, draftID); err != nil {
			return fmt.Errorf("delete selection pool: %w", err)
		}
		rows := make([][]any, 0, len(selections))
		for _, id := range selections {
			rows = append(rows, []any{draftID, id})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"draft_selection_pool"},
			[]string{"draft_id", "selection_id"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert selection pool: %w", err)
		}
		return nil
	})
}

// AvailableSelections lists pooled selections not yet claimed in the draft.
func (s *Store) AvailableSelections(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.selection_id
		FROM draft_selection_pool p
		WHERE p.draft_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM draft_claims c
			WHERE c.draft_id = p.draft_id AND c.selection = p.selection_id)
		ORDER BY p.selection_id`, draftID)
	if err != nil {
		return nil, fmt.Errorf("query selection pool: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan selection pool: %w", err)
	}
	return ids, nil
}
