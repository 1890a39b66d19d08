package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/doubleencore/MPA-Horatio/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore persists the task event audit trail in Postgres.
type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveTaskEvent appends one audit row.
func (s *PostgresStore) SaveTaskEvent(e storage.TaskEvent) error {
	_, err := s.db.Exec(
		"INSERT INTO task_events (task_name, event, failed, detail, recorded_at) VALUES ($1, $2, $3, $4, $5)",
		e.TaskName, e.Event, e.Failed, e.Detail, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("save task event: %w", err)
	}
	return nil
}

// ListTaskEvents returns every recorded event for a task name, oldest first.
func (s *PostgresStore) ListTaskEvents(taskName string) ([]storage.TaskEvent, error) {
	events := []storage.TaskEvent{}
	err := s.db.Select(&events,
		"SELECT id, task_name, event, failed, detail, recorded_at FROM task_events WHERE task_name = $1 ORDER BY id",
		taskName)
	if err != nil {
		return nil, fmt.Errorf("list task events for %q: %w", taskName, err)
	}
	return events, nil
}

// ListRecentTaskEvents returns the newest events first, capped at limit.
func (s *PostgresStore) ListRecentTaskEvents(limit int) ([]storage.TaskEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	events := []storage.TaskEvent{}
	err := s.db.Select(&events,
		"SELECT id, task_name, event, failed, detail, recorded_at FROM task_events ORDER BY id DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("list recent task events: %w", err)
	}
	return events, nil
}
