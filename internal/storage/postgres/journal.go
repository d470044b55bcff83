package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/melee/internal/game/combat"
)

var journalColumns = []string{
	"id", "kind", "game_time_ns", "attacker", "target",
	"weapon_id", "ability_id", "amount", "reason",
}

// JournalRepository persists combat events to the combat_events table.
type JournalRepository struct {
	db *pgxpool.Pool
}

// NewJournalRepository creates a JournalRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewJournalRepository(db *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{db: db}
}

// AppendEvents bulk-inserts events with COPY.
//
// Postcondition: Either every event is stored or none is and an error is returned.
func (r *JournalRepository) AppendEvents(ctx context.Context, events []combat.Event) error {
	if len(events) == 0 {
		return nil
	}
	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"combat_events"},
		journalColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{
				e.ID, string(e.Kind), int64(e.At), e.Attacker, e.Target,
				e.WeaponID, e.AbilityID, e.Amount, e.Reason,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying %d combat events: %w", len(events), err)
	}
	if int(n) != len(events) {
		return fmt.Errorf("copying combat events: wrote %d of %d rows", n, len(events))
	}
	return nil
}

// Recent returns up to limit events in ascending game time, starting from the
// most recent ones.
//
// Precondition: limit must be > 0.
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]combat.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, kind, game_time_ns, attacker, target, weapon_id, ability_id, amount, reason
		 FROM (
		     SELECT * FROM combat_events
		     ORDER BY game_time_ns DESC, recorded_at DESC
		     LIMIT $1
		 ) recent
		 ORDER BY game_time_ns ASC, recorded_at ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent combat events: %w", err)
	}
	defer rows.Close()

	var out []combat.Event
	for rows.Next() {
		var (
			e    combat.Event
			id   uuid.UUID
			kind string
			at   int64
		)
		if err := rows.Scan(&id, &kind, &at, &e.Attacker, &e.Target, &e.WeaponID, &e.AbilityID, &e.Amount, &e.Reason); err != nil {
			return nil, fmt.Errorf("scanning combat event: %w", err)
		}
		e.ID = id
		e.Kind = combat.EventKind(kind)
		e.At = time.Duration(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating combat events: %w", err)
	}
	return out, nil
}

// CountByKind returns how many stored events have kind.
func (r *JournalRepository) CountByKind(ctx context.Context, kind combat.EventKind) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM combat_events WHERE kind = $1`, string(kind),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s events: %w", kind, err)
	}
	return n, nil
}
