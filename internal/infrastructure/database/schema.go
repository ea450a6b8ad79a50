package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the chat schema. Every statement is idempotent so
// EnsureSchema can run on each start.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE SCHEMA IF NOT EXISTS chat`,
	`CREATE TABLE IF NOT EXISTS chat.user_profile (
		user_id     uuid PRIMARY KEY,
		tenant_id   uuid NOT NULL,
		time_zone   text NOT NULL DEFAULT 'UTC',
		quiet_start time,
		quiet_end   time
	)`,
	`CREATE TABLE IF NOT EXISTS chat.child (
		id        uuid PRIMARY KEY,
		tenant_id uuid NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat.conversation (
		id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		tenant_id        uuid NOT NULL,
		staff_id         uuid NOT NULL,
		guardian_id      uuid NOT NULL,
		child_id         uuid,
		created_at       timestamptz NOT NULL DEFAULT now(),
		last_activity_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS conversation_tuple_uq ON chat.conversation
		(tenant_id, staff_id, guardian_id, (COALESCE(child_id, '00000000-0000-0000-0000-000000000000'::uuid)))`,
	`CREATE INDEX IF NOT EXISTS conversation_tenant_activity_idx ON chat.conversation
		(tenant_id, last_activity_at DESC)`,
	`CREATE TABLE IF NOT EXISTS chat.message (
		id                uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		seq               bigserial NOT NULL,
		conversation_id   uuid NOT NULL REFERENCES chat.conversation(id),
		sender_id         uuid NOT NULL,
		body              text NOT NULL DEFAULT '',
		attachments       jsonb NOT NULL DEFAULT '[]'::jsonb,
		created_at        timestamptz NOT NULL,
		read_at           timestamptz,
		client_message_id text
	)`,
	`CREATE INDEX IF NOT EXISTS message_conversation_order_idx ON chat.message
		(conversation_id, created_at DESC, seq DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS message_client_id_uq ON chat.message
		(conversation_id, sender_id, client_message_id) WHERE client_message_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS message_unread_idx ON chat.message
		(conversation_id, sender_id) WHERE read_at IS NULL`,
}

// EnsureSchema creates the chat tables and indexes when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: schema statement %d: %w", i, err)
		}
	}
	return nil
}
