package medrec

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careexit/careexit/internal/platform/db"
)

type noRowsRow struct{}

func (noRowsRow) Scan(_ ...any) error { return pgx.ErrNoRows }

type noRowsTx struct{ pgx.Tx }

func (noRowsTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return noRowsRow{} }

// A patient without a reconciliation analysis is an absent row, not an error.
func TestRepoLatestNoRows(t *testing.T) {
	repo := NewRepoPG(nil)
	ctx := db.WithTx(context.Background(), noRowsTx{})

	a, err := repo.Latest(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil analysis, got %+v", a)
	}
}
