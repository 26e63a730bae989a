package repository

import (
	"context"

	"github.com/spec-kit/oms-chat/internal/domain"
)

// attachmentStore persists attachment metadata for chat messages.
type attachmentStore struct{}

func (attachmentStore) createForMessage(ctx context.Context, q querier, messageID string, attachments []domain.Attachment) error {
	const query = `
        INSERT INTO ticket_chat_attachments (message_id, position, file_name, url, storage_key, mime_type, file_size)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for i, att := range attachments {
		if _, err := q.Exec(ctx, query,
			messageID,
			i,
			att.FileName,
			att.URL,
			att.StorageKey,
			att.MimeType,
			att.FileSize,
		); err != nil {
			return err
		}
	}
	return nil
}

// listByMessages returns attachments keyed by message id, in stored order.
func (attachmentStore) listByMessages(ctx context.Context, q querier, messageIDs []string) (map[string][]domain.Attachment, error) {
	result := make(map[string][]domain.Attachment, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT message_id, file_name, url, storage_key, mime_type, file_size
        FROM ticket_chat_attachments
        WHERE message_id = ANY($1::uuid[])
        ORDER BY message_id, position`
	rows, err := q.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			messageID string
			att       domain.Attachment
		)
		if err := rows.Scan(
			&messageID,
			&att.FileName,
			&att.URL,
			&att.StorageKey,
			&att.MimeType,
			&att.FileSize,
		); err != nil {
			return nil, err
		}
		result[messageID] = append(result[messageID], att)
	}
	return result, rows.Err()
}
