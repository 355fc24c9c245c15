package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estate-hub/estate-hub/internal/domain/store"
)

// Store implements store.Store on PostgreSQL. Units run at READ COMMITTED;
// races are caught by the version predicate of every UPDATE and by the
// partial unique indexes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(ctx, repos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translate(err, "transaction", "commit"))
	}
	return nil
}

func (s *Store) Repos() store.Repos {
	return repos(s.pool)
}

func repos(q querier) store.Repos {
	return store.Repos{
		Properties:   &PropertyRepository{q: q},
		Assignments:  &AssignmentRepository{q: q},
		Visits:       &VisitRepository{q: q},
		Offers:       &OfferRepository{q: q},
		Reservations: &ReservationRepository{q: q},
		Transactions: &TransactionRepository{q: q},
		Audit:        &AuditRepository{q: q},
		Faults:       &FaultRepository{q: q},
		Agents:       &AgentRepository{q: q},
	}
}
