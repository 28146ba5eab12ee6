package sqlstore

import (
	"database/sql"
	"fmt"
)

// sqliteSchema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: users must be created BEFORE every table that references it.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    mobile TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    payer_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    split_policy TEXT NOT NULL,
    split_data TEXT,
    description TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    settled_at INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (payer_id) REFERENCES users(id)
)`,
	`CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (expense_id, user_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id)
)`,
	`CREATE TABLE IF NOT EXISTS pair_balances (
    user_lo TEXT NOT NULL,
    user_hi TEXT NOT NULL,
    net TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (user_lo, user_hi),
    FOREIGN KEY (user_lo) REFERENCES users(id),
    FOREIGN KEY (user_hi) REFERENCES users(id)
)`,
	`CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    from_user_id TEXT NOT NULL,
    to_user_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    note TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (from_user_id) REFERENCES users(id),
    FOREIGN KEY (to_user_id) REFERENCES users(id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_payer_id ON expenses(payer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_expense_participants_user_id ON expense_participants(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pair_balances_user_hi ON pair_balances(user_hi)`,
}

// mysqlSchema mirrors sqliteSchema. Amounts stay VARCHAR so decimals keep their
// full precision; indexes are declared inline because MySQL has no
// CREATE INDEX IF NOT EXISTS.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(36) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(254) NOT NULL UNIQUE,
    mobile VARCHAR(15) NOT NULL UNIQUE,
    created_at BIGINT NOT NULL
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS expenses (
    id VARCHAR(36) PRIMARY KEY,
    payer_id VARCHAR(36) NOT NULL,
    amount VARCHAR(64) NOT NULL,
    split_policy VARCHAR(16) NOT NULL,
    split_data TEXT,
    description VARCHAR(255) NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    settled_at BIGINT NOT NULL DEFAULT 0,
    INDEX idx_expenses_payer_id (payer_id),
    FOREIGN KEY (payer_id) REFERENCES users(id)
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id VARCHAR(36) NOT NULL,
    user_id VARCHAR(36) NOT NULL,
    position INT NOT NULL,
    PRIMARY KEY (expense_id, user_id),
    INDEX idx_expense_participants_user_id (user_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id)
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS pair_balances (
    user_lo VARCHAR(36) NOT NULL,
    user_hi VARCHAR(36) NOT NULL,
    net VARCHAR(64) NOT NULL,
    updated_at BIGINT NOT NULL,
    PRIMARY KEY (user_lo, user_hi),
    INDEX idx_pair_balances_user_hi (user_hi),
    FOREIGN KEY (user_lo) REFERENCES users(id),
    FOREIGN KEY (user_hi) REFERENCES users(id)
) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payments (
    id VARCHAR(36) PRIMARY KEY,
    from_user_id VARCHAR(36) NOT NULL,
    to_user_id VARCHAR(36) NOT NULL,
    amount VARCHAR(64) NOT NULL,
    note VARCHAR(255),
    created_at BIGINT NOT NULL,
    FOREIGN KEY (from_user_id) REFERENCES users(id),
    FOREIGN KEY (to_user_id) REFERENCES users(id)
) ENGINE=InnoDB`,
}

// runMigrations executes the schema setup for the dialect.
func runMigrations(db *sql.DB, dialect Dialect) error {
	schema := sqliteSchema
	if dialect == DialectMySQL {
		schema = mysqlSchema
	}
	for i, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
