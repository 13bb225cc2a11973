package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Schema creates the tables used by PostgresStore
const Schema = `
CREATE TABLE IF NOT EXISTS draft_orders (
	id         BIGSERIAL PRIMARY KEY,
	customer   TEXT NOT NULL UNIQUE,
	user_id    TEXT NOT NULL,
	lines      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id           BIGINT PRIMARY KEY,
	name         TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	price        NUMERIC(12,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	customers     JSONB NOT NULL DEFAULT '[]'
);
`

// PostgresStore implements the repositories on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates missing tables
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCustomer(ctx context.Context, customer string) (*DraftOrder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer, user_id, lines, created_at, updated_at
		 FROM draft_orders WHERE customer = $1`, customer)
	return scanDraft(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*DraftOrder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer, user_id, lines, created_at, updated_at
		 FROM draft_orders WHERE id = $1`, id)
	return scanDraft(row)
}

func scanDraft(row *sql.Row) (*DraftOrder, error) {
	var d DraftOrder
	var lines []byte
	err := row.Scan(&d.ID, &d.Customer, &d.UserID, &lines, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &d.Lines); err != nil {
		return nil, fmt.Errorf("draft order %d has unreadable lines: %w", d.ID, err)
	}
	return &d, nil
}

func (s *PostgresStore) Save(ctx context.Context, draft *DraftOrder) error {
	lines, err := json.Marshal(draft.Lines)
	if err != nil {
		return err
	}
	now := time.Now()

	if draft.ID == 0 {
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO draft_orders (customer, user_id, lines, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4)
			 ON CONFLICT (customer) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				lines = EXCLUDED.lines,
				updated_at = EXCLUDED.updated_at
			 RETURNING id, created_at`,
			draft.Customer, draft.UserID, lines, now,
		).Scan(&draft.ID, &draft.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert draft order: %w", err)
		}
		draft.UpdatedAt = now
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE draft_orders SET user_id = $2, lines = $3, updated_at = $4 WHERE id = $1`,
		draft.ID, draft.UserID, lines, now)
	if err != nil {
		return fmt.Errorf("failed to update draft order %d: %w", draft.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	draft.UpdatedAt = now
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM draft_orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft order %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, display_name, price FROM products WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Price); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// UpsertProduct writes a catalog entry, used for seeding
func (s *PostgresStore) UpsertProduct(ctx context.Context, p Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, display_name, price) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			price = EXCLUDED.price`,
		p.ID, p.Name, p.DisplayName, p.Price)
	return err
}

// UpsertUser writes an account, used for seeding
func (s *PostgresStore) UpsertUser(ctx context.Context, u User) error {
	customers, err := json.Marshal(u.Customers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, is_active, customers)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			is_active = EXCLUDED.is_active,
			customers = EXCLUDED.customers`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Active, customers)
	return err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, is_active, customers
		 FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, is_active, customers
		 FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var customers []byte
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Active, &customers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customers, &u.Customers); err != nil {
		return nil, fmt.Errorf("user %s has unreadable customers: %w", u.ID, err)
	}
	return &u, nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
