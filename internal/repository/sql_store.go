package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sethvargo/go-retry"
)

// MySQL error numbers the store cares about.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same query
// code serves reads outside and inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlQueries implements Queries on top of a querier.
type sqlQueries struct{ q querier }

// sqlTx implements Tx on top of an open *sql.Tx.
type sqlTx struct{ sqlQueries }

// SQLStore is the MySQL implementation of Store.
type SQLStore struct {
	sqlQueries
	db *sql.DB

	// MaxRetries bounds how many times a transaction is re-run after
	// a deadlock or lock wait timeout.
	MaxRetries int
	// RetryBase is the first backoff delay; later delays double.
	RetryBase time.Duration
	// OnRetry, when set, is called before each re-run.
	OnRetry func(err error)
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, maxRetries int) *SQLStore {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &SQLStore{
		sqlQueries: sqlQueries{q: db},
		db:         db,
		MaxRetries: maxRetries,
		RetryBase:  25 * time.Millisecond,
	}
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithTransaction runs fn inside a database transaction and commits
// when fn returns nil.  Deadlocks and lock wait timeouts re-run the
// whole transaction with exponential backoff; once MaxRetries is
// exhausted the error is reported as ErrTxConflict.
func (s *SQLStore) WithTransaction(ctx context.Context, fn TxFunc) error {
	b := retry.WithMaxRetries(uint64(s.MaxRetries), retry.NewExponential(s.RetryBase))
	var last error
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		// last is set from the second attempt on
		if last != nil && s.OnRetry != nil {
			s.OnRetry(last)
		}
		err := s.runTx(ctx, fn)
		last = err
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	// retries exhausted
	if isRetryable(err) {
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	return err
}

// runTx executes one attempt.  The rollback is deferred and skipped
// once the commit succeeded.
func (s *SQLStore) runTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// roll back on any early return
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// run the body against the open transaction
	if err := fn(ctx, &sqlTx{sqlQueries{q: tx}}); err != nil {
		return err
	}
	// a deadlock may also surface at commit
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isRetryable reports whether err is a MySQL deadlock or lock wait timeout.
func isRetryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
	}
	return false
}

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound maps sql.ErrNoRows to ErrNotFound and passes other errors through.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// checkAffected turns a zero-row update into ErrNotFound.
func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
