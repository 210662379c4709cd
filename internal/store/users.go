package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// User is a local account. It carries no credentials; logging in only
// selects whose memories are shown.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	CreatedAt   int64  `json:"created_at"`
	LastLoginAt *int64 `json:"last_login_at,omitempty"`
}

// CreateUser registers a new user. Username and email must be unique.
func (db *DB) CreateUser(username, email string) (*User, error) {
	u := &User{
		ID:        uuid.New().String(),
		Username:  strings.TrimSpace(username),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: time.Now().UnixMilli(),
	}

	_, err := db.Exec(`
		INSERT INTO users (id, username, email, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser returns a user by id.
func (db *DB) GetUser(id string) (*User, error) {
	return db.scanUser(db.QueryRow(`
		SELECT id, username, email, created_at, last_login_at
		FROM users WHERE id = ?
	`, id))
}

// GetUserByName returns a user by username.
func (db *DB) GetUserByName(username string) (*User, error) {
	return db.scanUser(db.QueryRow(`
		SELECT id, username, email, created_at, last_login_at
		FROM users WHERE username = ?
	`, strings.TrimSpace(username)))
}

// ResolveUser looks ref up as an id first, then as a username.
func (db *DB) ResolveUser(ref string) (*User, error) {
	u, err := db.GetUser(ref)
	if errors.Is(err, ErrUserNotFound) {
		return db.GetUserByName(ref)
	}
	return u, err
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.LastLoginAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by username.
func (db *DB) ListUsers() ([]User, error) {
	rows, err := db.Query(`
		SELECT id, username, email, created_at, last_login_at
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.LastLoginAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TouchLogin records a login for the user.
func (db *DB) TouchLogin(id string) error {
	result, err := db.Exec("UPDATE users SET last_login_at = ? WHERE id = ?", time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
