package database

import (
	"context"
	"fmt"
	"time"

	"hanapbahay/internal/models"
)

const userColumns = `id, role, name, email, phone, telegram_chat_id, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleTenant
	}
	now := time.Now()
	query := `INSERT INTO users (role, name, email, phone, telegram_chat_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		user.Role,
		user.Name,
		user.Email,
		user.Phone,
		user.TelegramChatID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) UpdateUser(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET role = ?, name = ?, email = ?, phone = ?, updated_at = ? WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, user.Role, user.Name, user.Email, user.Phone, now, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	var user models.User
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Role, &user.Name, &user.Email, &user.Phone,
		&user.TelegramChatID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

// LinkTelegramChat stores the chat id used for Telegram notifications.
func (db *DB) LinkTelegramChat(ctx context.Context, userID, chatID int64) error {
	query := `UPDATE users SET telegram_chat_id = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, chatID, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to link telegram chat: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// GetUserByTelegramChat finds the user that linked chatID.
func (db *DB) GetUserByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_chat_id = ? ORDER BY id LIMIT 1`
	var user models.User
	err := db.QueryRowContext(ctx, query, chatID).Scan(
		&user.ID, &user.Role, &user.Name, &user.Email, &user.Phone,
		&user.TelegramChatID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "telegram chat", chatID)
	}
	return &user, nil
}
