package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/oms-chat/internal/domain"
)

// TicketRepository exposes the ticket data the chat subsystem reads and the
// single column it writes.
type TicketRepository interface {
	GetAccess(ctx context.Context, ticketID string) (*domain.TicketAccess, error)
	TouchLastMessage(ctx context.Context, ticketID string, at time.Time) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) GetAccess(ctx context.Context, ticketID string) (*domain.TicketAccess, error) {
	const query = `
        SELECT t.id, t.title, t.creator_id, t.assignee_id, t.receipt_id,
               rc.verified_by_id, v.user_id
        FROM tickets t
        LEFT JOIN receipts rc ON rc.id = t.receipt_id
        LEFT JOIN dispatches d ON d.id = rc.dispatch_id
        LEFT JOIN vendors v ON v.id = d.vendor_id
        WHERE t.id=$1`

	var access domain.TicketAccess
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&access.TicketID,
		&access.Title,
		&access.CreatorID,
		&access.AssigneeID,
		&access.ReceiptID,
		&access.ReceiptVerifierID,
		&access.VendorUserID,
	); err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *ticketRepository) TouchLastMessage(ctx context.Context, ticketID string, at time.Time) error {
	const query = `UPDATE tickets SET last_message_at=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, at, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
