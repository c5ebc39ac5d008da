package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	postgresSchema = `CREATE TABLE IF NOT EXISTS credstore (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`

	// postgresNotifyChannel is shared by all namespaces; notifications carry
	// the namespace and are filtered on receive.
	postgresNotifyChannel = "credstore_changes"
)

type postgresNotification struct {
	Namespace string `json:"ns"`
	Change
}

// Postgres is a Store backed by a single-row-per-key table, with mutations
// announced through LISTEN/NOTIFY so store instances in separate processes
// observe each other's writes.
//
// As with the Redis store, a Postgres store's own writes are echoed back to
// its own Watch channel.
type Postgres struct {
	pool      *pgxpool.Pool
	namespace string
	logger    *slog.Logger
}

// PostgresOption configures a Postgres store.
type PostgresOption func(*Postgres)

// WithPostgresLogger configures structured logging for watch-loop failures.
func WithPostgresLogger(logger *slog.Logger) PostgresOption {
	return func(p *Postgres) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPostgres creates a Postgres-backed store scoped to the given namespace,
// ensuring the backing table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, namespace string, opts ...PostgresOption) (*Postgres, error) {
	p := &Postgres{
		pool:      pool,
		namespace: namespace,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, errors.Join(errors.New("credstore: failed to ensure schema"), err)
	}
	return p, nil
}

// Get returns the value for key, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM credstore WHERE key = $1`,
		p.namespace+":"+key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set upserts the value for key and announces the change.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO credstore (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		p.namespace+":"+key, value,
	)
	if err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	p.announce(ctx, Change{Key: key, Value: value, Present: true})
	return nil
}

// Delete removes the given keys, announcing each key that existed.
func (p *Postgres) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		tag, err := p.pool.Exec(ctx,
			`DELETE FROM credstore WHERE key = $1`,
			p.namespace+":"+key,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			p.announce(ctx, Change{Key: key, Present: false})
		}
	}
	return nil
}

// Watch holds a dedicated connection on LISTEN and emits changes for this
// store's namespace until ctx is cancelled.
func (p *Postgres) Watch(ctx context.Context) (<-chan Change, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+postgresNotifyChannel); err != nil {
		conn.Release()
		return nil, err
	}

	out := make(chan Change, watchBuffer)

	go func() {
		defer close(out)
		defer conn.Release()

		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.WarnContext(ctx, "credstore: notification wait failed, watch stopped",
						slog.String("error", err.Error()))
				}
				return
			}

			var n postgresNotification
			if err := json.Unmarshal([]byte(notification.Payload), &n); err != nil {
				p.logger.WarnContext(ctx, "credstore: dropping undecodable change notification",
					slog.String("error", err.Error()))
				continue
			}
			if n.Namespace != p.namespace {
				continue
			}
			select {
			case out <- n.Change:
			default: // watcher buffer full, drop
			}
		}
	}()

	return out, nil
}

// announce sends the NOTIFY. Failures are logged and swallowed: the write
// itself succeeded, and the storage-observation path is best-effort.
func (p *Postgres) announce(ctx context.Context, change Change) {
	payload, err := json.Marshal(postgresNotification{Namespace: p.namespace, Change: change})
	if err != nil {
		return
	}
	if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, postgresNotifyChannel, string(payload)); err != nil {
		p.logger.WarnContext(ctx, "credstore: failed to announce change",
			slog.String("key", change.Key),
			slog.String("error", err.Error()))
	}
}
