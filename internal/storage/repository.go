package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"modernc.org/sqlite"

	"expenses/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Driver names a supported relational store.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const table = "expenses"

var columns = []string{"id", "amount", "description", "date", "category"}

// sqliteLower replaces LOWER in sqlite queries; the builtin only folds ASCII.
const sqliteLower = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLower, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

func (d Driver) IsValid() bool {
	return d == DriverSQLite || d == DriverPostgres
}

func (d Driver) sqlDriverName() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Driver) placeholders() sq.PlaceholderFormat {
	if d == DriverPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Options configures Open. For sqlite DSN is a file path; for postgres a connection URL.
type Options struct {
	Driver       Driver
	DSN          string
	MaxOpenConns int
}

// Repository is the data access layer for expenses. It owns the connection
// pool and holds one pooled connection for the duration of each call.
type Repository struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	driver Driver
}

// queryRower is satisfied by both *sql.Conn and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Open(ctx context.Context, opts Options) (*Repository, error) {
	if !opts.Driver.IsValid() {
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	dsn := opts.DSN
	if opts.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = withQueryParam(dsn, "_pragma=busy_timeout(5000)")
	}

	db, err := sql.Open(opts.Driver.sqlDriverName(), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", opts.Driver)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := RunMigrations(opts.Driver, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(opts.Driver.placeholders()),
		driver: opts.Driver,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.withConn(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}

// withConn scopes one pooled connection to fn and returns it to the pool on every path.
func (r *Repository) withConn(ctx context.Context, fn func(conn *sql.Conn) error) (err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "release connection")
		}
	}()
	return fn(conn)
}

// Get returns core.ErrNotFound when no row has the given id.
func (r *Repository) Get(ctx context.Context, id int64) (core.Expense, error) {
	var e core.Expense
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		e, err = r.getOne(ctx, conn, id)
		return err
	})
	return e, err
}

func (r *Repository) getOne(ctx context.Context, q queryRower, id int64) (core.Expense, error) {
	query, args, err := r.sb.Select(columns...).
		From(table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.Expense{}, errors.Wrap(err, "build get query")
	}

	e, err := scanExpense(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, errors.Wrap(err, "get expense")
	}
	return e, nil
}

// List returns one page of expenses matching f, ordered by id.
func (r *Repository) List(ctx context.Context, f core.SearchFilter) ([]core.Expense, error) {
	qb := r.sb.Select(columns...).
		From(table).
		OrderBy("id").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))
	if f.Description != nil {
		qb = qb.Where(r.descriptionContains(*f.Description))
	}
	if f.Category != nil {
		qb = qb.Where(sq.Eq{"category": int64(*f.Category)})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}

	exps := make([]core.Expense, 0)
	err = r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return errors.Wrap(err, "list expenses")
		}
		defer func() {
			if rowErr := rows.Close(); rowErr != nil {
				slog.WarnContext(ctx, "Error closing rows", "error", rowErr)
			}
		}()

		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return errors.Wrap(err, "list expenses")
			}
			exps = append(exps, e)
		}
		return errors.Wrap(rows.Err(), "list expenses")
	})
	if err != nil {
		return nil, err
	}
	return exps, nil
}

// Create inserts e and returns it with the store-assigned id.
func (r *Repository) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	query, args, err := r.sb.Insert(table).
		Columns("amount", "description", "date", "category").
		Values(e.Amount, e.Description, e.Date, int64(e.Category)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return core.Expense{}, errors.Wrap(err, "build insert query")
	}

	err = r.withConn(ctx, func(conn *sql.Conn) error {
		return errors.Wrap(conn.QueryRowContext(ctx, query, args...).Scan(&e.ID), "create expense")
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.DebugContext(ctx, "Expense saved", "id", e.ID, "driver", r.driver)
	return e, nil
}

// Update overwrites the present fields of patch and returns the stored row.
func (r *Repository) Update(ctx context.Context, id int64, patch core.ExpensePatch) (core.Expense, error) {
	var e core.Expense
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "update expense")
		}
		defer func() {
			if txErr := tx.Rollback(); txErr != nil && !errors.Is(txErr, sql.ErrTxDone) {
				slog.WarnContext(ctx, "Error rolling back transaction", "error", txErr)
			}
		}()

		if !patch.IsEmpty() {
			if err := r.applyPatch(ctx, tx, id, patch); err != nil {
				return err
			}
		}

		e, err = r.getOne(ctx, tx, id)
		if err != nil {
			return err
		}
		return errors.Wrap(tx.Commit(), "update expense")
	})
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *Repository) applyPatch(ctx context.Context, tx *sql.Tx, id int64, patch core.ExpensePatch) error {
	ub := r.sb.Update(table).Where(sq.Eq{"id": id})
	if patch.Amount != nil {
		ub = ub.Set("amount", *patch.Amount)
	}
	if patch.Description != nil {
		ub = ub.Set("description", *patch.Description)
	}
	if patch.Date != nil {
		ub = ub.Set("date", *patch.Date)
	}
	if patch.Category != nil {
		ub = ub.Set("category", int64(*patch.Category))
	}

	query, args, err := ub.ToSql()
	if err != nil {
		return errors.Wrap(err, "build update query")
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update expense")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update expense")
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Delete hard-deletes the row, returning core.ErrNotFound if it did not exist.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "build delete query")
	}

	return r.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return errors.Wrap(err, "delete expense")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "delete expense")
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e   core.Expense
		cat int64
	)
	if err := s.Scan(&e.ID, &e.Amount, &e.Description, &e.Date, &cat); err != nil {
		return core.Expense{}, err
	}
	e.Category = core.Category(cat)
	return e, nil
}

// descriptionContains matches term as a case-insensitive substring of description.
func (r *Repository) descriptionContains(term string) sq.Sqlizer {
	pattern := "%" + escapeLike(term) + "%"
	if r.driver == DriverPostgres {
		return sq.Expr(`description ILIKE ? ESCAPE '\'`, pattern)
	}
	return sq.Expr(sqliteLower+`(description) LIKE ? ESCAPE '\'`, strings.ToLower(pattern))
}

func withQueryParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using '\' as escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
