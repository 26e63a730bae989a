package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/oms-chat/internal/domain"
)

type fakeUserRepo struct {
	users map[string]*domain.User
	err   error
	calls int
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeTicketRepo struct {
	tickets map[string]*domain.TicketAccess
	err     error
	touched map[string]time.Time
}

func (r *fakeTicketRepo) GetAccess(_ context.Context, ticketID string) (*domain.TicketAccess, error) {
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (r *fakeTicketRepo) TouchLastMessage(_ context.Context, ticketID string, at time.Time) error {
	if r.touched == nil {
		r.touched = map[string]time.Time{}
	}
	r.touched[ticketID] = at
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	err      error
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	msg.ID = fmt.Sprintf("m%d", len(r.messages)+1)
	msg.CreatedAt = time.Date(2024, 5, 1, 12, 0, len(r.messages), 0, time.UTC)
	r.messages = append(r.messages, *msg)
	return nil
}

// ListRecent mirrors the repository contract: newest first.
func (r *fakeMessageRepo) ListRecent(_ context.Context, ticketID string, limit, offset int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.ChatMessage
	for _, m := range r.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (r *fakeMessageRepo) CountByTicket(_ context.Context, ticketID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	n := 0
	for _, m := range r.messages {
		if m.TicketID == ticketID {
			n++
		}
	}
	return n, nil
}

func strPtr(s string) *string { return &s }
