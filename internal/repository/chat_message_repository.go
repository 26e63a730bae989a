package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/oms-chat/internal/domain"
)

// ChatMessageRepository persists ticket chat messages. Messages are append-only.
type ChatMessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	ListRecent(ctx context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, error)
	CountByTicket(ctx context.Context, ticketID string) (int, error)
}

type chatMessageRepository struct {
	pool        *pgxpool.Pool
	attachments attachmentStore
}

// NewChatMessageRepository builds repository.
func NewChatMessageRepository(pool *pgxpool.Pool) ChatMessageRepository {
	return &chatMessageRepository{pool: pool}
}

// Create inserts the message and its attachments in one transaction, filling
// ID and CreatedAt from the database.
func (r *chatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO ticket_chat_messages (ticket_id, sender_id, body, message_type)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Text,
		msg.MessageType,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := r.attachments.createForMessage(ctx, tx, msg.ID, msg.Attachments); err != nil {
		return fmt.Errorf("insert attachments: %w", err)
	}
	return tx.Commit(ctx)
}

// ListRecent returns the newest messages first; callers reverse for display.
func (r *chatMessageRepository) ListRecent(ctx context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, error) {
	const query = `
        SELECT m.id, m.ticket_id, m.sender_id, u.name, m.body, m.message_type, m.created_at
        FROM ticket_chat_messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.ticket_id=$1
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
	}
	byMessage, err := r.attachments.listByMessages(ctx, r.pool, ids)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	for i := range msgs {
		msgs[i].Attachments = byMessage[msgs[i].ID]
		if msgs[i].Attachments == nil {
			msgs[i].Attachments = []domain.Attachment{}
		}
	}
	return msgs, nil
}

func (r *chatMessageRepository) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ticket_chat_messages WHERE ticket_id=$1`, ticketID).Scan(&total)
	return total, err
}

func scanMessages(rows pgx.Rows) ([]domain.ChatMessage, error) {
	defer rows.Close()
	var result []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Text,
			&msg.MessageType,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
