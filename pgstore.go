package revmig

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const lockPollInterval = 250 * time.Millisecond

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// pgStore keeps applied state in a single table inside the target store
// and serializes runs with an advisory lock.
type pgStore struct {
	db      DB
	table   string
	qtable  string
	lockKey int64
	lockTx  pgx.Tx
}

func newPGStore(db DB, table string) *pgStore {
	h := fnv.New64a()
	h.Write([]byte("revmig:" + table))
	return &pgStore{
		db:      db,
		table:   table,
		qtable:  pgx.Identifier{table}.Sanitize(),
		lockKey: int64(h.Sum64()),
	}
}

func (s *pgStore) Init(ctx context.Context) error {
	tableExists, getTableExistsErr := s.tableExists(ctx)
	if getTableExistsErr != nil {
		return fmt.Errorf("get revisions table existence failed: %w", getTableExistsErr)
	}
	if tableExists {
		return nil
	}
	uqName := pgx.Identifier{"uq_" + s.table + "_revision"}.Sanitize()
	branchIdx := pgx.Identifier{"idx_" + s.table + "_branch"}.Sanitize()
	appliedIdx := pgx.Identifier{"idx_" + s.table + "_applied_at"}.Sanitize()
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	revision VARCHAR(255) NOT NULL,
	branch VARCHAR(255) NOT NULL DEFAULT '',
	checksum TEXT NOT NULL,
	run_id UUID NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT %s UNIQUE (revision)
);
CREATE INDEX IF NOT EXISTS %s ON %s (branch);
CREATE INDEX IF NOT EXISTS %s ON %s (applied_at);`,
		s.qtable, uqName, branchIdx, s.qtable, appliedIdx, s.qtable,
	)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create revisions table failed: %w", err)
	}
	return nil
}

func (s *pgStore) tableExists(ctx context.Context) (bool, error) {
	query := `SELECT EXISTS (
    SELECT FROM
        pg_tables
    WHERE
        schemaname = 'public' AND
        tablename  = $1
    );`
	var exists bool
	if err := pgxscan.Get(ctx, s.db, &exists, query, s.table); err != nil {
		return false, fmt.Errorf("check revisions table existence failed: %w", err)
	}
	return exists, nil
}

// Advisory locks are session-scoped and the engine may run on a pool,
// where every statement can land on a different connection. The lock
// therefore lives in its own transaction: pgx binds a transaction to
// one connection for its whole lifetime, and the xact-scoped lock falls
// away when ReleaseLock ends it, on the same session that took it.
func (s *pgStore) AcquireLock(ctx context.Context, timeout time.Duration) error {
	tx, beginErr := s.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("begin lock session failed: %w", beginErr)
	}
	deadline := time.Now().Add(timeout)
	for {
		var locked bool
		if err := pgxscan.Get(ctx, tx, &locked, `SELECT pg_try_advisory_xact_lock($1)`, s.lockKey); err != nil {
			return s.endLockTx(ctx, tx, fmt.Errorf("acquire migration lock failed: %w", err))
		}
		if locked {
			s.lockTx = tx
			return nil
		}
		if time.Now().After(deadline) {
			return s.endLockTx(ctx, tx, &LockTimeoutError{Timeout: timeout})
		}
		select {
		case <-ctx.Done():
			return s.endLockTx(ctx, tx, fmt.Errorf("acquire migration lock failed: %w", ctx.Err()))
		case <-time.After(lockPollInterval):
		}
	}
}

func (s *pgStore) ReleaseLock(ctx context.Context) error {
	if s.lockTx == nil {
		return nil
	}
	tx := s.lockTx
	s.lockTx = nil
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		return fmt.Errorf("release migration lock failed: %w", rollbackErr)
	}
	return nil
}

func (s *pgStore) endLockTx(ctx context.Context, tx pgx.Tx, cause error) error {
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		return errors.Join(
			fmt.Errorf("end lock session failed: %w", rollbackErr),
			cause,
		)
	}
	return cause
}

func (s *pgStore) Applied(ctx context.Context) ([]AppliedRevision, error) {
	sql, args, createSqlErr := squirrel.Select().
		Columns("id", "revision", "branch", "checksum", "run_id", "applied_at").
		From(s.qtable).
		OrderBy("applied_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if createSqlErr != nil {
		return nil, fmt.Errorf("create applied revisions sql failed: %w", createSqlErr)
	}
	rows, queryErr := s.db.Query(ctx, sql, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("find applied revisions failed: %w", queryErr)
	}
	defer rows.Close()
	var result []AppliedRevision
	if scanErr := pgxscan.ScanAll(&result, rows); scanErr != nil {
		return nil, fmt.Errorf("scan applied revisions failed: %w", scanErr)
	}
	return result, nil
}

func (s *pgStore) ApplyStep(
	ctx context.Context, step *Step, statements []Statement, record AppliedRevision,
) error {
	if step.Autocommit {
		for _, statement := range statements {
			if _, execErr := s.db.Exec(ctx, statement.SQL, statement.Args...); execErr != nil {
				return fmt.Errorf("run statement failed: %w", execErr)
			}
		}
		if insertErr := s.insertApplied(ctx, s.db, record); insertErr != nil {
			return fmt.Errorf("record applied revision failed: %w", insertErr)
		}
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, statement := range statements {
			if _, execErr := tx.Exec(ctx, statement.SQL, statement.Args...); execErr != nil {
				return fmt.Errorf("run statement failed: %w", execErr)
			}
		}
		if insertErr := s.insertApplied(ctx, tx, record); insertErr != nil {
			return fmt.Errorf("record applied revision failed: %w", insertErr)
		}
		return nil
	})
}

func (s *pgStore) RevertStep(ctx context.Context, step *Step, statements []Statement) error {
	if step.Autocommit {
		for _, statement := range statements {
			if _, execErr := s.db.Exec(ctx, statement.SQL, statement.Args...); execErr != nil {
				return fmt.Errorf("run statement failed: %w", execErr)
			}
		}
		if deleteErr := s.deleteApplied(ctx, s.db, step.Revision); deleteErr != nil {
			return fmt.Errorf("remove applied revision failed: %w", deleteErr)
		}
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, statement := range statements {
			if _, execErr := tx.Exec(ctx, statement.SQL, statement.Args...); execErr != nil {
				return fmt.Errorf("run statement failed: %w", execErr)
			}
		}
		if deleteErr := s.deleteApplied(ctx, tx, step.Revision); deleteErr != nil {
			return fmt.Errorf("remove applied revision failed: %w", deleteErr)
		}
		return nil
	})
}

func (s *pgStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, beginErr := s.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("begin step transaction failed: %w", beginErr)
	}
	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return errors.Join(
				fmt.Errorf("rollback step failed: %w", rollbackErr),
				err,
			)
		}
		return err
	}
	if commitErr := tx.Commit(ctx); commitErr != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return errors.Join(
				fmt.Errorf("rollback while commit step failed: %w", rollbackErr),
				fmt.Errorf("commit step failed: %w", commitErr),
			)
		}
		return fmt.Errorf("commit step failed: %w", commitErr)
	}
	return nil
}

func (s *pgStore) insertApplied(ctx context.Context, db execer, record AppliedRevision) error {
	sql, args, createSqlErr := squirrel.Insert(s.qtable).
		Columns("id", "revision", "branch", "checksum", "run_id", "applied_at").
		Values(
			record.Id, record.Revision, record.Branch, record.Checksum,
			record.RunId, record.AppliedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if createSqlErr != nil {
		return fmt.Errorf("create applied revision insert sql failed: %w", createSqlErr)
	}
	if _, execErr := db.Exec(ctx, sql, args...); execErr != nil {
		return fmt.Errorf("insert applied revision failed: %w", execErr)
	}
	return nil
}

func (s *pgStore) deleteApplied(ctx context.Context, db execer, revision string) error {
	sql, args, createSqlErr := squirrel.Delete(s.qtable).
		Where(squirrel.Eq{"revision": revision}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if createSqlErr != nil {
		return fmt.Errorf("create applied revision delete sql failed: %w", createSqlErr)
	}
	if _, execErr := db.Exec(ctx, sql, args...); execErr != nil {
		return fmt.Errorf("delete applied revision failed: %w", execErr)
	}
	return nil
}
