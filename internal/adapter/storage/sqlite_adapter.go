package storage

import (
	"database/sql"
	"fmt"
	"time"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS customers (
    id         TEXT NOT NULL PRIMARY KEY,
    email      TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id         TEXT    NOT NULL PRIMARY KEY,
    name       TEXT    NOT NULL UNIQUE,
    price      TEXT    NOT NULL,
    quantity   INTEGER NOT NULL CHECK (quantity >= 0),
    created_at TEXT    NOT NULL,
    updated_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id          TEXT NOT NULL PRIMARY KEY,
    customer_id TEXT NOT NULL REFERENCES customers (id),
    status      TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    order_id   TEXT    NOT NULL REFERENCES orders (id),
    line_no    INTEGER NOT NULL,
    product_id TEXT    NOT NULL REFERENCES products (id),
    quantity   INTEGER NOT NULL,
    price      TEXT    NOT NULL,
    PRIMARY KEY (order_id, line_no)
);

CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders (customer_id);
`

// SQLiteAdapter is the embedded store. SQLite has a single writer, so every
// transaction runs on one connection and commits are serialized.
type SQLiteAdapter struct {
	*sqlStore
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
//
//	store, err := storage.OpenSQLite("./data/orders.db")
func OpenSQLite(path string) (*SQLiteAdapter, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &SQLiteAdapter{
		sqlStore: &sqlStore{
			db: db,
			timeArg: func(t time.Time) any {
				return t.UTC().Format(time.RFC3339Nano)
			},
		},
	}, nil
}

func (s *SQLiteAdapter) Close() error {
	return s.db.Close()
}
