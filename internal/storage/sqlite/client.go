package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		hashed_password TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT 'free',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		metadata TEXT,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_usage_action ON usage_records(action);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_type TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		uploaded_by TEXT,
		uploaded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents(uploaded_at);

	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		num_sources INTEGER NOT NULL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_history(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateUser(user *models.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, tier, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	isActive := 0
	if user.IsActive {
		isActive = 1
	}

	_, err := c.db.Exec(
		query,
		user.ID,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.Tier,
		isActive,
		user.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("User created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

func (c *Client) GetUserByID(id string) (*models.User, error) {
	return c.getUser(`SELECT id, username, email, hashed_password, tier, is_active, created_at FROM users WHERE id = ?`, id)
}

func (c *Client) GetUserByUsername(username string) (*models.User, error) {
	return c.getUser(`SELECT id, username, email, hashed_password, tier, is_active, created_at FROM users WHERE username = ?`, username)
}

func (c *Client) GetUserByEmail(email string) (*models.User, error) {
	return c.getUser(`SELECT id, username, email, hashed_password, tier, is_active, created_at FROM users WHERE email = ?`, email)
}

func (c *Client) getUser(query string, arg interface{}) (*models.User, error) {
	var user models.User
	var isActive int
	var createdAt int64

	err := c.db.QueryRow(query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.HashedPassword,
		&user.Tier,
		&isActive,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.IsActive = isActive == 1
	user.CreatedAt = time.Unix(createdAt, 0)

	return &user, nil
}

func (c *Client) UpdateUserTier(userID, tier string) error {
	res, err := c.db.Exec(`UPDATE users SET tier = ? WHERE id = ?`, tier, userID)
	if err != nil {
		return fmt.Errorf("failed to update user tier: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}

	logger.Info("User tier updated", zap.String("user_id", userID), zap.String("tier", tier))
	return nil
}

func (c *Client) InsertUsageRecord(record *models.UsageRecord) error {
	query := `INSERT INTO usage_records (user_id, action, metadata, timestamp) VALUES (?, ?, ?, ?)`

	_, err := c.db.Exec(query, record.UserID, record.Action, record.Metadata, record.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// CountUsageSince returns the number of usage records for the user newer
// than cutoff, optionally filtered by action (empty action matches all).
func (c *Client) CountUsageSince(userID, action string, cutoff time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM usage_records WHERE user_id = ? AND timestamp > ?`
	args := []interface{}{userID, cutoff.Unix()}

	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}

	var count int
	if err := c.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}

	return count, nil
}

func (c *Client) InsertDocument(doc *models.Document) error {
	query := `INSERT INTO documents (id, filename, file_type, chunk_count, uploaded_by, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.Filename,
		doc.FileType,
		doc.ChunkCount,
		doc.UploadedBy,
		doc.UploadedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document recorded", zap.String("doc_id", doc.ID), zap.String("filename", doc.Filename))
	return nil
}

func (c *Client) ListDocuments(limit int) ([]models.Document, error) {
	query := `SELECT id, filename, file_type, chunk_count, uploaded_by, uploaded_at FROM documents ORDER BY uploaded_at DESC LIMIT ?`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var uploadedAt int64

		if err := rows.Scan(&d.ID, &d.Filename, &d.FileType, &d.ChunkCount, &d.UploadedBy, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		d.UploadedAt = time.Unix(uploadedAt, 0)
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

func (c *Client) CountDocuments() (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (c *Client) DeleteAllDocuments() error {
	if _, err := c.db.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

func (c *Client) InsertChatRecord(record *models.ChatRecord) error {
	query := `INSERT INTO chat_history (id, user_id, question, answer, num_sources, latency_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.Question,
		record.Answer,
		record.NumSources,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	return nil
}

func (c *Client) GetChatHistory(userID string, limit int) ([]models.ChatRecord, error) {
	query := `
		SELECT id, user_id, question, answer, num_sources, latency_ms, created_at
		FROM chat_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var r models.ChatRecord
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.UserID, &r.Question, &r.Answer, &r.NumSources, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
