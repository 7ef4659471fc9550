package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const defaultPostgresTimeout = 5 * time.Second

// PostgresLedger stores daily counters in a single table managed by the
// migrations under db/migrations. The consume path is one conditional
// UPSERT: a returned row means the unit was spent.
type PostgresLedger struct {
	db    *sql.DB
	dsn   string
	limit int
	now   func() time.Time
}

// NewPostgresLedger creates a Postgres-backed ledger. Call Initialize before use.
func NewPostgresLedger(dsn string, limit int) *PostgresLedger {
	if limit <= 0 {
		limit = 3
	}
	return &PostgresLedger{dsn: dsn, limit: limit, now: time.Now}
}

// Initialize opens and pings the database.
func (p *PostgresLedger) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", p.dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, defaultPostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	p.db = db
	return nil
}

// consumeSQL spends one unit when the stored day is stale (reset to 1) or
// the counter is under the limit. No row returned means the allowance is
// exhausted for today.
const consumeSQL = `
INSERT INTO trial_quota AS q (user_id, day, used)
VALUES ($1, $2, 1)
ON CONFLICT (user_id) DO UPDATE SET
    day  = $2,
    used = CASE WHEN q.day <> $2 THEN 1 ELSE q.used + 1 END
WHERE q.day <> $2 OR q.used < $3
RETURNING used`

func (p *PostgresLedger) Consume(ctx context.Context, userID string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultPostgresTimeout)
	defer cancel()

	today := dayKey(p.now())

	var used int
	err := p.db.QueryRowContext(ctx, consumeSQL, userID, today, p.limit).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		d, perr := p.Peek(ctx, userID)
		if perr != nil {
			return Decision{Allowed: false, Used: p.limit, Limit: p.limit}, nil
		}
		d.Allowed = false
		return d, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("quota consume: %w", err)
	}
	return Decision{Allowed: true, Used: used, Limit: p.limit, Remaining: remaining(p.limit, used)}, nil
}

func (p *PostgresLedger) Peek(ctx context.Context, userID string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultPostgresTimeout)
	defer cancel()

	today := dayKey(p.now())

	var used int
	err := p.db.QueryRowContext(ctx,
		`SELECT used FROM trial_quota WHERE user_id = $1 AND day = $2`,
		userID, today).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return Decision{Allowed: true, Used: 0, Limit: p.limit, Remaining: p.limit}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("quota peek: %w", err)
	}
	return Decision{
		Allowed:   used < p.limit,
		Used:      used,
		Limit:     p.limit,
		Remaining: remaining(p.limit, used),
	}, nil
}

func (p *PostgresLedger) Close(context.Context) error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
