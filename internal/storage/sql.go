package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"rosh/internal/logger"
)

// SQL is a Store over database/sql. The driver packages are linked in by
// dialect.go.
type SQL struct {
	db *sql.DB
	d  dialect
}

// Open connects to driver/dsn and creates the collection table if needed.
// The memory driver returns a *Memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	if driver == DriverMemory {
		return NewMemory(), nil
	}
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	dsn, err = d.prepareDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid %s dsn: %w", driver, err)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	if d.maxConns > 0 {
		db.SetMaxOpenConns(d.maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: connect %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create %s: %w", Collection, err)
	}
	logger.For("storage").Info("storage opened",
		slog.String("driver", driver),
		slog.String("collection", Collection))
	return &SQL{db: db, d: d}, nil
}

func (s *SQL) Get(ctx context.Context, key string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		s.d.bind(`SELECT path, uid, doc FROM `+Collection+` WHERE path = ?`), key)
	var rec Record
	err := row.Scan(&rec.Key, &rec.UID, &rec.Doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQL) Range(ctx context.Context, lo, hi string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		s.d.bind(`SELECT path, uid, doc FROM `+Collection+` WHERE path >= ? AND path < ? ORDER BY path`), lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Key, &rec.UID, &rec.Doc); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQL) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, d: s.d}, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
	d  dialect
}

func (t *sqlTx) Add(ctx context.Context, rec Record) error {
	_, err := t.tx.ExecContext(ctx,
		t.d.bind(`INSERT INTO `+Collection+` (path, uid, doc) VALUES (?, ?, ?)`), rec.Key, rec.UID, rec.Doc)
	if err != nil && t.d.isDuplicate(err) {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.Key)
	}
	return err
}

func (t *sqlTx) Update(ctx context.Context, rec Record) error {
	res, err := t.tx.ExecContext(ctx,
		t.d.bind(`UPDATE `+Collection+` SET uid = ?, doc = ? WHERE path = ?`), rec.UID, rec.Doc, rec.Key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrMissing, rec.Key)
	}
	return nil
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}
