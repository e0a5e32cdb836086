package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id         VARCHAR(64)  NOT NULL PRIMARY KEY,
		email      VARCHAR(255) NOT NULL UNIQUE,
		created_at DATETIME(6)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         VARCHAR(64)    NOT NULL PRIMARY KEY,
		name       VARCHAR(255)   NOT NULL UNIQUE,
		price      DECIMAL(12, 2) NOT NULL,
		quantity   INT            NOT NULL,
		created_at DATETIME(6)    NOT NULL,
		updated_at DATETIME(6)    NOT NULL,
		CONSTRAINT chk_products_quantity CHECK (quantity >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id          CHAR(36)    NOT NULL PRIMARY KEY,
		customer_id VARCHAR(64) NOT NULL,
		status      VARCHAR(16) NOT NULL,
		created_at  DATETIME(6) NOT NULL,
		CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES customers (id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   CHAR(36)       NOT NULL,
		line_no    INT            NOT NULL,
		product_id VARCHAR(64)    NOT NULL,
		quantity   INT            NOT NULL,
		price      DECIMAL(12, 2) NOT NULL,
		PRIMARY KEY (order_id, line_no),
		CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders (id),
		CONSTRAINT fk_order_items_product FOREIGN KEY (product_id) REFERENCES products (id)
	)`,
}

// MySQLAdapter stores customers, products and orders in MySQL (InnoDB).
// Stock decrements are conditional row updates taken in product ID order.
type MySQLAdapter struct {
	*sqlStore
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{
		sqlStore: &sqlStore{
			db:      db,
			timeArg: func(t time.Time) any { return t },
		},
	}
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql: apply schema: %w", err)
		}
	}
	return nil
}
