package revmig

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the open connection handle the engine runs against. Both
// *pgx.Conn and *pgxpool.Pool satisfy it; pooling and credentials stay
// with the caller. The execution lock is held inside a dedicated
// transaction, so pool-backed handles keep one session pinned for the
// duration of a run.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}
