// Package store is a local SQLite cache of raw message records, so a
// rejoined conversation renders immediately while the history fetch is
// in flight. Content is stored exactly as the server sent it: ciphertext
// stays ciphertext and key material never touches disk.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"gchat/internal/protocol"
)

type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database inside dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "messages.db"))
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		conv            TEXT NOT NULL,
		id              INTEGER NOT NULL,
		user_id         INTEGER NOT NULL,
		username        TEXT NOT NULL,
		content         TEXT NOT NULL,
		timestamp       TEXT NOT NULL,
		profile_picture TEXT NOT NULL,
		PRIMARY KEY (conv, id)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Put records one message for a conversation. Replayed ids are ignored,
// matching the append-once nature of the server log.
func (c *Cache) Put(conv protocol.Conversation, m protocol.Message) error {
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO messages (conv, id, user_id, username, content, timestamp, profile_picture)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.Key(), m.ID, m.UserID, m.Username, m.Content, m.Timestamp.Format(time.RFC3339Nano), m.ProfilePicture,
	)
	return err
}

// PutAll records a historical batch.
func (c *Cache) PutAll(conv protocol.Conversation, msgs []protocol.Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO messages (conv, id, user_id, username, content, timestamp, profile_picture)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, m := range msgs {
		if _, err := stmt.Exec(conv.Key(), m.ID, m.UserID, m.Username, m.Content, m.Timestamp.Format(time.RFC3339Nano), m.ProfilePicture); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Load returns the cached log for a conversation in id order.
func (c *Cache) Load(conv protocol.Conversation) ([]protocol.Message, error) {
	rows, err := c.db.Query(
		`SELECT id, user_id, username, content, timestamp, profile_picture
		 FROM messages WHERE conv = ? ORDER BY id ASC`, conv.Key())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.Message
	for rows.Next() {
		var m protocol.Message
		var ts string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.Content, &ts, &m.ProfilePicture); err != nil {
			return nil, err
		}
		m.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("store: corrupt timestamp for message %d: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Drop forgets a conversation's cached log, used when a temp chat expires.
func (c *Cache) Drop(conv protocol.Conversation) error {
	_, err := c.db.Exec(`DELETE FROM messages WHERE conv = ?`, conv.Key())
	return err
}
