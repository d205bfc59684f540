package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// Rooms are served as whole JSON documents, so inventory and missed items
// live in one positional table and are reassembled on read. A PUT replaces
// every row for the room.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS rooms (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    last_checked TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS room_items (
    room_id  TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    list     TEXT NOT NULL CHECK (list IN ('inventory', 'missed')),
    position INTEGER NOT NULL,
    item_id  TEXT NOT NULL,
    name     TEXT NOT NULL,
    qr_code  TEXT NOT NULL,
    PRIMARY KEY (room_id, list, position)
);

CREATE INDEX IF NOT EXISTS idx_room_items_qr_code
    ON room_items(qr_code) WHERE list = 'inventory';

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
