package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/hqnguyen/order-engine/internal/port"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so the repositories
// work inside and outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the MySQL-backed persistence layer. It acts as the unit of
// work (port.UnitOfWork) and hands out repositories bound either to
// the pool (non-transactional reads) or to one open transaction.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Run executes fn inside one transaction. Row locks taken by fn are
// held until commit or rollback; any error from fn rolls everything
// back.
func (s *Store) Run(ctx context.Context, fn func(tx port.RepositoryTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txRepos{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Orders() port.OrderRepository       { return &OrderMySQL{q: s.db} }
func (s *Store) Products() port.ProductRepository   { return &ProductMySQL{q: s.db} }
func (s *Store) Customers() port.CustomerRepository { return &CustomerMySQL{q: s.db} }
func (s *Store) Outbox() port.OutboxRepository      { return &OutboxMySQL{q: s.db} }

type txRepos struct {
	q queryer
}

func (t *txRepos) Orders() port.OrderRepository       { return &OrderMySQL{q: t.q} }
func (t *txRepos) Products() port.ProductRepository   { return &ProductMySQL{q: t.q} }
func (t *txRepos) Customers() port.CustomerRepository { return &CustomerMySQL{q: t.q} }
func (t *txRepos) Outbox() port.OutboxRepository      { return &OutboxMySQL{q: t.q} }

// isDuplicate reports whether err is a MySQL duplicate-key violation
// (error 1062) on the named unique index.
func isDuplicate(err error, index string) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062 && strings.Contains(me.Message, index)
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse uuid %q: %w", s, err)
	}
	return id, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
