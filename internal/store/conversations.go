package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateConversation creates a conversation with the given title.
func (s *Store) CreateConversation(ctx context.Context, ownerID uuid.UUID, title string) (*Conversation, error) {
	conv := &Conversation{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Title:   title,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, owner_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		conv.ID, conv.OwnerID, conv.Title,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "title", conv.Title)
	return conv, nil
}

// GetConversation retrieves a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var conv Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, created_at, updated_at
		FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting conversation %s: %w", id, err)
	}
	return &conv, nil
}

// ListConversations returns a user's conversations, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context, ownerID uuid.UUID) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, title, created_at, updated_at
		FROM conversations WHERE owner_id = $1
		ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title,
			&conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation; messages and scoped documents
// (with their chunks) cascade at the schema level.
func (s *Store) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddMessage appends one immutable message to a conversation. The role
// must be in the closed set and content must be non-empty.
func (s *Store) AddMessage(ctx context.Context, conversationID uuid.UUID, role Role, content string) (*Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	// Touch the conversation so listings sort by activity.
	if _, err := s.pool.Exec(ctx, `
		UPDATE conversations SET updated_at = now() WHERE id = $1`, conversationID); err != nil {
		s.logger.Warn("touching conversation", "id", conversationID, "error", err)
	}

	return msg, nil
}

// RecentMessages returns the last limit messages of a conversation in
// chronological (oldest-first) order.
func (s *Store) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var msg Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returned newest first; callers want oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
