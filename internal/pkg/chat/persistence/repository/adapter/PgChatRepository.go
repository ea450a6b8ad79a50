package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgInvalidTextRepresentation = "22P02"

type PgChatRepository struct {
	pool *pgxpool.Pool
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

const conversationColumns = `id::text, tenant_id::text, staff_id::text, guardian_id::text, child_id::text, created_at, last_activity_at`

const messageColumns = `id::text, conversation_id::text, sender_id::text, body, attachments, created_at, read_at, client_message_id`

func (r *PgChatRepository) GetOrCreateConversation(ctx context.Context, key chat.ConversationKey, now time.Time) (chat.Conversation, bool, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, false, errors.New("PgChatRepository: nil pool")
	}

	// The unique index on the tuple arbitrates concurrent creators; losers
	// fall through to the select below.
	conv, err := scanConversation(r.pool.QueryRow(ctx, `
		INSERT INTO chat.conversation (tenant_id, staff_id, guardian_id, child_id, created_at, last_activity_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, NULLIF($4, '')::uuid, $5, $5)
		ON CONFLICT (tenant_id, staff_id, guardian_id, (COALESCE(child_id, '00000000-0000-0000-0000-000000000000'::uuid)))
		DO NOTHING
		RETURNING `+conversationColumns,
		key.TenantID, key.StaffID, key.GuardianID, key.Child(), now.UTC(),
	))
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, false, translate(err)
	}

	conv, err = scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM chat.conversation
		WHERE tenant_id = $1::uuid AND staff_id = $2::uuid AND guardian_id = $3::uuid
		  AND child_id IS NOT DISTINCT FROM NULLIF($4, '')::uuid
	`, key.TenantID, key.StaffID, key.GuardianID, key.Child()))
	if err != nil {
		return chat.Conversation{}, false, translate(err)
	}
	return conv, false, nil
}

func (r *PgChatRepository) GetConversation(ctx context.Context, tenantID string, conversationID string) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errors.New("PgChatRepository: nil pool")
	}
	conv, err := scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM chat.conversation
		WHERE id = $1::uuid AND tenant_id = $2::uuid
	`, conversationID, tenantID))
	if err != nil {
		return chat.Conversation{}, translate(err)
	}
	return conv, nil
}

func (r *PgChatRepository) ListConversations(ctx context.Context, tenantID string, participantID string, all bool) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM chat.conversation
		WHERE tenant_id = $1::uuid
		  AND ($3::boolean OR staff_id = NULLIF($2, '')::uuid OR guardian_id = NULLIF($2, '')::uuid)
		ORDER BY last_activity_at DESC, id
	`, tenantID, participantID, all)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	convs := make([]chat.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if rows.Err() != nil {
		return nil, translate(rows.Err())
	}
	return convs, nil
}

func (r *PgChatRepository) AppendMessage(ctx context.Context, m chat.Message, now time.Time) (chat.Message, bool, error) {
	if r == nil || r.pool == nil {
		return chat.Message{}, false, errors.New("PgChatRepository: nil pool")
	}

	attachments, err := json.Marshal(nonNilAttachments(m.Attachments))
	if err != nil {
		return chat.Message{}, false, fmt.Errorf("encode attachments: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return chat.Message{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock serializes appends per conversation so timestamps stay monotonic.
	conv, err := scanConversation(tx.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM chat.conversation
		WHERE id = $1::uuid
		FOR UPDATE
	`, m.ConversationID))
	if err != nil {
		return chat.Message{}, false, translate(err)
	}

	if m.ClientMessageID != nil {
		existing, err := scanMessage(tx.QueryRow(ctx, `
			SELECT `+messageColumns+`
			FROM chat.message
			WHERE conversation_id = $1::uuid AND sender_id = $2::uuid AND client_message_id = $3
		`, m.ConversationID, m.SenderID, *m.ClientMessageID))
		if err == nil {
			return existing, true, tx.Commit(ctx)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return chat.Message{}, false, translate(err)
		}
	}

	m.CreatedAt = conv.Stamp(now)
	m.ReadAt = nil
	err = tx.QueryRow(ctx, `
		INSERT INTO chat.message (conversation_id, sender_id, body, attachments, created_at, client_message_id)
		VALUES ($1::uuid, $2::uuid, $3, $4::jsonb, $5, $6)
		RETURNING id::text
	`, m.ConversationID, m.SenderID, m.Body, string(attachments), m.CreatedAt, m.ClientMessageID).Scan(&m.ID)
	if err != nil {
		return chat.Message{}, false, translate(err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chat.conversation SET last_activity_at = $2 WHERE id = $1::uuid
	`, m.ConversationID, m.CreatedAt); err != nil {
		return chat.Message{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.Message{}, false, err
	}
	m.Attachments = nonNilAttachments(m.Attachments)
	return m, false, nil
}

func (r *PgChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) (chat.Page, error) {
	if r == nil || r.pool == nil {
		return chat.Page{}, errors.New("PgChatRepository: nil pool")
	}
	// Count and window must see the same snapshot.
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return chat.Page{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM chat.message WHERE conversation_id = $1::uuid
	`, conversationID).Scan(&total); err != nil {
		return chat.Page{}, translate(err)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat.message
		WHERE conversation_id = $1::uuid
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return chat.Page{}, translate(err)
	}
	defer rows.Close()

	msgs := make([]chat.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return chat.Page{}, err
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return chat.Page{}, rows.Err()
	}

	reverse(msgs)
	return chat.Page{Messages: msgs, Total: total}, tx.Commit(ctx)
}

func (r *PgChatRepository) MarkRead(ctx context.Context, conversationID string, readerID string, readAt time.Time) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgChatRepository: nil pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.message
		SET read_at = $3
		WHERE conversation_id = $1::uuid AND sender_id <> $2::uuid AND read_at IS NULL
	`, conversationID, readerID, readAt.UTC())
	if err != nil {
		return 0, translate(err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *PgChatRepository) UnreadCount(ctx context.Context, tenantID string, userID string) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgChatRepository: nil pool")
	}
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM chat.message m
		JOIN chat.conversation c ON c.id = m.conversation_id
		WHERE c.tenant_id = $1::uuid
		  AND (c.staff_id = $2::uuid OR c.guardian_id = $2::uuid)
		  AND m.sender_id <> $2::uuid
		  AND m.read_at IS NULL
	`, tenantID, userID).Scan(&n)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func scanConversation(row pgx.Row) (chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(&c.ID, &c.TenantID, &c.StaffID, &c.GuardianID, &c.ChildID, &c.CreatedAt, &c.LastActivityAt)
	return c, err
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var (
		msg         chat.Message
		attachments []byte
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &attachments, &msg.CreatedAt, &msg.ReadAt, &msg.ClientMessageID); err != nil {
		return chat.Message{}, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return chat.Message{}, fmt.Errorf("decode attachments of message %s: %w", msg.ID, err)
		}
	}
	msg.Attachments = nonNilAttachments(msg.Attachments)
	return msg, nil
}

// translate maps "no row" and malformed ids onto chat.ErrNotFound.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return fmt.Errorf("%w: %s", chat.ErrNotFound, pgErr.Message)
	}
	return err
}

func reverse(msgs []chat.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func nonNilAttachments(a []chat.Attachment) []chat.Attachment {
	if a == nil {
		return []chat.Attachment{}
	}
	return a
}
