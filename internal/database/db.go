package database

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn   *sql.DB
	dbType string
}

type Config struct {
	Type       string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SQLitePath string
}

func NewDB(config Config) (*DB, error) {
	var conn *sql.DB
	var err error

	switch config.Type {
	case "sqlite":
		// busy_timeout serializes concurrent writers instead of failing
		// them with SQLITE_BUSY.
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", config.SQLitePath)
		conn, err = sql.Open("sqlite3", dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, config.Password, config.Name)
		conn, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, dbType: config.Type}

	// Only create tables for SQLite; postgres schemas go through migrations.
	if config.Type == "sqlite" {
		if err := db.createTables(); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		uploaded_by_coach_id TEXT,
		normal_key TEXT,
		normal_uploaded INTEGER NOT NULL DEFAULT 0,
		left_to_right_key TEXT,
		left_to_right_uploaded INTEGER NOT NULL DEFAULT 0,
		right_to_left_key TEXT,
		right_to_left_uploaded INTEGER NOT NULL DEFAULT 0,
		rear_view_key TEXT,
		rear_view_uploaded INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		thumbnail_key TEXT,
		notes TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		metrics TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_owner ON analyses(owner_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_coach ON analyses(uploaded_by_coach_id);

	CREATE TABLE IF NOT EXISTS usage_records (
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, month)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		metadata TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);

	CREATE TABLE IF NOT EXISTS activity_events (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		analysis_id TEXT NOT NULL,
		action TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_analysis ON activity_events(analysis_id);

	CREATE TABLE IF NOT EXISTS coach_athletes (
		coach_id TEXT NOT NULL,
		athlete_id TEXT NOT NULL,
		PRIMARY KEY (coach_id, athlete_id)
	);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
