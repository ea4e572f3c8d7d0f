package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hanapbahay/internal/models"
)

const conversationColumns = `id, listing_id, tenant_id, owner_id, last_message, last_message_at,
	tenant_unread, owner_unread, created_at, updated_at`

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.ListingID, &c.TenantID, &c.OwnerID, &c.LastMessage, &c.LastMessageAt,
		&c.TenantUnread, &c.OwnerUnread, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateConversation returns the thread between tenant and owner about
// a listing, creating it on first use.
func (db *DB) GetOrCreateConversation(ctx context.Context, listingID, tenantID, ownerID int64) (*models.Conversation, error) {
	now := time.Now()
	_, err := db.ExecContext(ctx, `INSERT INTO conversations (
			listing_id, tenant_id, owner_id, last_message, last_message_at, created_at, updated_at
		) VALUES (?, ?, ?, '', ?, ?, ?)
		ON CONFLICT(listing_id, tenant_id, owner_id) DO NOTHING`,
		listingID, tenantID, ownerID, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE listing_id = ? AND tenant_id = ? AND owner_id = ?`
	c, err := scanConversation(db.QueryRowContext(ctx, query, listingID, tenantID, ownerID))
	if err != nil {
		return nil, notFound(err, "conversation", listingID)
	}
	return c, nil
}

func (db *DB) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	c, err := scanConversation(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "conversation", id)
	}
	return c, nil
}

// ListConversations returns threads the user takes part in, most recent first.
func (db *DB) ListConversations(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
              WHERE tenant_id = ? OR owner_id = ? ORDER BY last_message_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// AddMessage stores a message and bumps the preview and the unread counter
// of every participant other than the sender.
func (db *DB) AddMessage(ctx context.Context, msg *models.Message) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if msg.Kind == "" {
			msg.Kind = models.MessageText
		}
		now := time.Now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, sender_id, kind, body, created_at) VALUES (?, ?, ?, ?, ?)`,
			msg.ConversationID, msg.SenderID, msg.Kind, msg.Body, now)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		result, err = tx.ExecContext(ctx, `UPDATE conversations SET
				last_message = ?, last_message_at = ?, updated_at = ?,
				tenant_unread = tenant_unread + CASE WHEN tenant_id = ? THEN 0 ELSE 1 END,
				owner_unread = owner_unread + CASE WHEN owner_id = ? THEN 0 ELSE 1 END
			WHERE id = ?`,
			preview(msg.Body), now, now, msg.SenderID, msg.SenderID, msg.ConversationID)
		if err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("conversation %d: %w", msg.ConversationID, ErrNotFound)
		}

		msg.ID = id
		msg.CreatedAt = now
		return nil
	})
}

// ListMessages returns messages oldest first. beforeID > 0 pages backwards.
func (db *DB) ListMessages(ctx context.Context, conversationID, beforeID int64, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.MaxPageSize
	}
	query := `SELECT id, conversation_id, sender_id, kind, body, created_at FROM (
                SELECT * FROM messages
                WHERE conversation_id = ? AND (? = 0 OR id < ?)
                ORDER BY id DESC LIMIT ?
              ) ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, conversationID, beforeID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Kind, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkConversationRead resets the unread counter of userID.
func (db *DB) MarkConversationRead(ctx context.Context, conversationID, userID int64) error {
	query := `UPDATE conversations SET
				tenant_unread = CASE WHEN tenant_id = ? THEN 0 ELSE tenant_unread END,
				owner_unread = CASE WHEN owner_id = ? THEN 0 ELSE owner_unread END
              WHERE id = ? AND (tenant_id = ? OR owner_id = ?)`
	result, err := db.ExecContext(ctx, query, userID, userID, conversationID, userID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	}
	return nil
}

func preview(body string) string {
	const maxPreview = 120
	runes := []rune(body)
	if len(runes) <= maxPreview {
		return body
	}
	return string(runes[:maxPreview-3]) + "..."
}
