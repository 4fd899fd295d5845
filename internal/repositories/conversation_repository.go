package repositories

import (
	"context"
	"database/sql"

	"gigBack/internal/models"
)

// ConversationRepository stores one conversation per (engagement, performer)
// pair and its messages.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `id, engagement_id, venue_id, performer_id, participants, account_names, authorized_user_ids,
	venue_name, performer_name, status, last_message, last_message_at, last_sender_id, created_at`

// Create inserts the conversation. When a concurrent writer created the pair
// first, the stored conversation is returned instead.
func (r *ConversationRepository) Create(ctx context.Context, c models.Conversation) (models.Conversation, error) {
	participants, accounts, authorized, err := encodeConversation(c)
	if err != nil {
		return c, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO conversations (`+conversationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.EngagementID, c.VenueID, c.PerformerID, participants, accounts, authorized,
		c.VenueName, c.PerformerName, c.Status, c.LastMessage, nullableTime(c.LastMessageAt), c.LastSenderID, c.CreatedAt.UTC())
	if err != nil {
		_ = tx.Rollback()
		if isDuplicateKey(err) {
			return r.Find(ctx, c.EngagementID, c.PerformerID)
		}
		return c, err
	}
	if err := indexMembers(ctx, tx, c); err != nil {
		_ = tx.Rollback()
		return c, err
	}
	return c, tx.Commit()
}

func (r *ConversationRepository) Find(ctx context.Context, engagementID, performerID string) (models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE engagement_id = ? AND performer_id = ?`, engagementID, performerID)
	c, err := scanConversation(row)
	return c, mapNoRows(err, models.ErrConversationNotFound)
}

func (r *ConversationRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE engagement_id = ? ORDER BY created_at ASC, performer_id ASC`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListForUser returns the conversations the account is authorized to read,
// most recent first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT c.id, c.engagement_id, c.venue_id, c.performer_id, c.participants, c.account_names,
		c.authorized_user_ids, c.venue_name, c.performer_name, c.status, c.last_message, c.last_message_at, c.last_sender_id, c.created_at
		FROM conversations c JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.user_id = ? ORDER BY c.last_message_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save writes the mutable summary fields and refreshes the member index.
func (r *ConversationRepository) Save(ctx context.Context, c models.Conversation) (err error) {
	participants, accounts, authorized, err := encodeConversation(c)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET participants = ?, account_names = ?, authorized_user_ids = ?,
		venue_name = ?, performer_name = ?, status = ?, last_message = ?, last_message_at = ?, last_sender_id = ?
		WHERE id = ?`, participants, accounts, authorized, c.VenueName, c.PerformerName, c.Status,
		c.LastMessage, nullableTime(c.LastMessageAt), c.LastSenderID, c.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		err = models.ErrConversationNotFound
		return err
	}
	if err = indexMembers(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func indexMembers(ctx context.Context, tx *sql.Tx, c models.Conversation) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_members WHERE conversation_id = ?`, c.ID); err != nil {
		return err
	}
	for _, uid := range c.AuthorizedUserIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversation_members (conversation_id, user_id) VALUES (?, ?)`, c.ID, uid); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConversationRepository) AddMessage(ctx context.Context, m models.Message) (models.Message, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, type, status, text, fee, created_at)
		VALUES (?,?,?,?,?,?,?,?)`, m.ID, m.ConversationID, m.SenderID, m.Type, m.Status, m.Text, m.Fee, m.CreatedAt.UTC())
	if err != nil {
		return m, mapWriteErr(err, nil)
	}
	return m, nil
}

func (r *ConversationRepository) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, conversation_id, sender_id, type, status, text, fee, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Type, &m.Status, &m.Text, &m.Fee, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) SetMessageStatus(ctx context.Context, conversationID string, types, from []string, to string) (int64, error) {
	if len(types) == 0 || len(from) == 0 {
		return 0, nil
	}
	args := []interface{}{to, conversationID}
	args = append(args, stringArgs(types)...)
	args = append(args, stringArgs(from)...)
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status = ? WHERE conversation_id = ?
		AND type IN (`+placeholders(len(types))+`) AND status IN (`+placeholders(len(from))+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func encodeConversation(c models.Conversation) (participants, accounts, authorized string, err error) {
	if participants, err = encodeJSON(nonNil(c.Participants)); err != nil {
		return
	}
	if c.AccountNames == nil {
		c.AccountNames = []models.AccountName{}
	}
	if accounts, err = encodeJSON(c.AccountNames); err != nil {
		return
	}
	authorized, err = encodeJSON(nonNil(c.AuthorizedUserIDs))
	return
}

func scanConversation(row scanner) (models.Conversation, error) {
	var (
		c            models.Conversation
		participants sql.NullString
		accounts     sql.NullString
		authorized   sql.NullString
		lastAt       sql.NullTime
	)
	err := row.Scan(&c.ID, &c.EngagementID, &c.VenueID, &c.PerformerID, &participants, &accounts, &authorized,
		&c.VenueName, &c.PerformerName, &c.Status, &c.LastMessage, &lastAt, &c.LastSenderID, &c.CreatedAt)
	if err != nil {
		return models.Conversation{}, err
	}
	for _, f := range []struct {
		raw sql.NullString
		dst interface{}
	}{{participants, &c.Participants}, {accounts, &c.AccountNames}, {authorized, &c.AuthorizedUserIDs}} {
		if err := decodeJSON(f.raw, f.dst); err != nil {
			return models.Conversation{}, err
		}
	}
	if lastAt.Valid {
		c.LastMessageAt = lastAt.Time.UTC()
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
