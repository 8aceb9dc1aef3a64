package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"situationcord.app/relay/core/db"
	"situationcord.app/relay/internal/model"
)

type messageStore struct {
	conn db.DBTX
}

func newMessageStore(conn db.DBTX) MessageStore {
	return &messageStore{conn: conn}
}

func (s *messageStore) GetKeyByExternalID(ctx context.Context, messageID string) (int64, error) {
	var key int64
	err := s.conn.QueryRow(ctx,
		`SELECT id FROM discord_messages WHERE message_id = $1`,
		messageID,
	).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return key, nil
}

const listRecentByThread = `
SELECT m.message_id, m.content, m.message_timestamp,
       COALESCE(NULLIF(a.display_name, ''), a.username) AS author, a.bot
FROM discord_messages m
JOIN discord_authors a ON a.id = m.author_id
WHERE m.thread_id = $1
ORDER BY m.message_timestamp DESC
LIMIT $2`

func (s *messageStore) ListRecentByThread(ctx context.Context, threadID string, limit int32) ([]model.ThreadContextEntry, error) {
	rows, err := s.conn.Query(ctx, listRecentByThread, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying thread messages: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ThreadContextEntry, 0, limit)
	for rows.Next() {
		var e model.ThreadContextEntry
		if err := rows.Scan(&e.MessageID, &e.Content, &e.Timestamp, &e.Author, &e.IsBot); err != nil {
			return nil, fmt.Errorf("scanning thread message: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const upsertAuthor = `
INSERT INTO discord_authors (id, username, discriminator, display_name, avatar_url, bot, system, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
    username      = EXCLUDED.username,
    discriminator = EXCLUDED.discriminator,
    display_name  = EXCLUDED.display_name,
    avatar_url    = EXCLUDED.avatar_url,
    bot           = EXCLUDED.bot,
    system        = EXCLUDED.system,
    updated_at    = now()`

func (s *messageStore) UpsertAuthor(ctx context.Context, author *model.DiscordAuthor) error {
	discriminator := author.Discriminator
	if discriminator == "" {
		discriminator = "0"
	}
	_, err := s.conn.Exec(ctx, upsertAuthor,
		author.ID,
		author.Username,
		discriminator,
		author.DisplayName,
		author.AvatarURL,
		author.Bot,
		author.System,
	)
	return err
}

const insertMessage = `
INSERT INTO discord_messages (
    id, event_type, timestamp, message_id, content, message_timestamp, edited_timestamp,
    channel_id, channel_name, channel_type, thread_id, thread_name, thread_type,
    parent_channel_id, parent_channel_name, pinned, message_type, referenced_message_id,
    author_id, guild_id, guild_name, embeds, attachments, mentions, reactions
) VALUES (
    $1, $2, $3, $4, $5, $6, $7,
    $8, $9, $10, $11, $12, $13,
    $14, $15, $16, $17, $18,
    $19, $20, $21, $22::jsonb, $23::jsonb, $24::jsonb, $25::jsonb
)
ON CONFLICT (message_id) DO NOTHING`

func (s *messageStore) InsertMessage(ctx context.Context, msg *model.StoredMessage) (bool, error) {
	tag, err := s.conn.Exec(ctx, insertMessage,
		msg.Key,
		msg.EventType,
		msg.ReceivedAt,
		msg.MessageID,
		msg.Content,
		msg.MessageTimestamp,
		msg.EditedTimestamp,
		msg.ChannelID,
		msg.ChannelName,
		msg.ChannelType,
		msg.ThreadID,
		msg.ThreadName,
		msg.ThreadType,
		msg.ParentChannelID,
		msg.ParentChannelName,
		msg.Pinned,
		msg.MessageType,
		msg.ReferencedMessageID,
		msg.AuthorID,
		msg.GuildID,
		msg.GuildName,
		jsonArray(msg.Embeds),
		jsonArray(msg.Attachments),
		jsonArray(msg.Mentions),
		jsonArray(msg.Reactions),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// jsonArray returns raw as JSONB text, with absent or null input stored as an
// empty array.
func jsonArray(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "[]"
	}
	return string(trimmed)
}
