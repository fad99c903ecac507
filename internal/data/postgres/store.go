// Package postgres stores every record in PostgreSQL. Booking overlap is
// enforced by an exclusion constraint, so concurrent inserts need no
// application lock.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/PaulBabatuyi/coova/internal/data"
)

const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
)

// Store implements the resource, booking, conversation, message and read
// cursor stores on one *sql.DB.
type Store struct {
	db *sql.DB
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// InitializeTables creates the schema if it does not exist.
func (s *Store) InitializeTables(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS btree_gist;

	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		kind TEXT NOT NULL,
		price_per_hour BIGINT NOT NULL CHECK (price_per_hour > 0),
		capacity INT NOT NULL DEFAULT 0,
		visible BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at TIMESTAMPTZ NOT NULL,
		party_size INT NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		total_minor BIGINT NOT NULL,
		payment_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (starts_at < ends_at),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			resource_id WITH =,
			tstzrange(starts_at, ends_at, '[)') WITH &&
		) WHERE (status IN ('pending', 'accepted', 'paid'))
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL DEFAULT '',
		participants TEXT[] NOT NULL,
		key TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		last_message_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		attachments JSONB NOT NULL DEFAULT '[]',
		client_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS read_cursors (
		conversation_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		last_read_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_resources_owner ON resources(owner_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings(requester_id, starts_at);
	CREATE INDEX IF NOT EXISTS idx_bookings_owner ON bookings(owner_id, starts_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_participants ON conversations USING gin(participants);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// translate maps driver errors onto the data sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return data.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeExclusionViolation:
			return data.ErrOverlap
		case codeUniqueViolation:
			return data.ErrDuplicate
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

// ---- resources ----

const resourceColumns = `id, owner_id, title, kind, price_per_hour, capacity, visible, created_at, updated_at`

func scanResource(row scanner) (*data.Resource, error) {
	var r data.Resource
	if err := row.Scan(&r.ID, &r.OwnerID, &r.Title, &r.Kind, &r.PricePerHour, &r.Capacity, &r.Visible, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return &r, nil
}

func (s *Store) CreateResource(ctx context.Context, r *data.Resource) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO resources (`+resourceColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.OwnerID, r.Title, r.Kind, r.PricePerHour, r.Capacity, r.Visible, r.CreatedAt, r.UpdatedAt)
	return translate(err)
}

func (s *Store) GetResource(ctx context.Context, id string) (*data.Resource, error) {
	r, err := scanResource(s.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
	return r, translate(err)
}

func (s *Store) UpdateResource(ctx context.Context, r *data.Resource) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE resources
	SET title = $2, kind = $3, price_per_hour = $4, capacity = $5, visible = $6, updated_at = $7
	WHERE id = $1`,
		r.ID, r.Title, r.Kind, r.PricePerHour, r.Capacity, r.Visible, r.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	return expectRow(res)
}

func (s *Store) ListResources(ctx context.Context, ownerID string, visibleOnly bool) ([]*data.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+resourceColumns+`
	FROM resources
	WHERE ($1 = '' OR owner_id = $1) AND (NOT $2 OR visible)
	ORDER BY created_at DESC, id`, ownerID, visibleOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*data.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- bookings ----

const bookingColumns = `id, resource_id, owner_id, requester_id, starts_at, ends_at, party_size, status, total_minor, payment_ref, created_at, updated_at`

func scanBooking(row scanner) (*data.Booking, error) {
	var b data.Booking
	if err := row.Scan(&b.ID, &b.ResourceID, &b.OwnerID, &b.RequesterID, &b.StartsAt, &b.EndsAt,
		&b.PartySize, &b.Status, &b.TotalMinor, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.StartsAt, b.EndsAt = b.StartsAt.UTC(), b.EndsAt.UTC()
	b.CreatedAt, b.UpdatedAt = b.CreatedAt.UTC(), b.UpdatedAt.UTC()
	return &b, nil
}

// InsertBooking relies on bookings_no_overlap; a violation surfaces as data.ErrOverlap.
func (s *Store) InsertBooking(ctx context.Context, b *data.Booking) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO bookings (`+bookingColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.ResourceID, b.OwnerID, b.RequesterID, b.StartsAt, b.EndsAt,
		b.PartySize, string(b.Status), b.TotalMinor, b.PaymentRef, b.CreatedAt, b.UpdatedAt)
	return translate(err)
}

func (s *Store) GetBooking(ctx context.Context, id string) (*data.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	return b, translate(err)
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to data.BookingStatus, paymentRef string, at time.Time) (*data.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, `
	UPDATE bookings
	SET status = $3, updated_at = $4, payment_ref = COALESCE(NULLIF($5::text, ''), payment_ref)
	WHERE id = $1 AND status = $2
	RETURNING `+bookingColumns,
		id, string(from), string(to), at, paymentRef))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translate(err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, data.ErrNotFound
	}
	return nil, data.ErrStaleStatus
}

func (s *Store) ListBookings(ctx context.Context, f data.BookingFilter) ([]*data.Booking, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.RequesterID != "" {
		add("requester_id = $%d", f.RequesterID)
	}
	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		add("starts_at < $%d", f.To)
		add("ends_at > $%d", f.From)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY starts_at, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*data.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---- conversations ----

const conversationColumns = `id, resource_id, participants, key, created_at, last_message_at`

func scanConversation(row scanner) (*data.Conversation, error) {
	var c data.Conversation
	if err := row.Scan(&c.ID, &c.ResourceID, pq.Array(&c.Participants), &c.Key, &c.CreatedAt, &c.LastMessageAt); err != nil {
		return nil, err
	}
	c.CreatedAt, c.LastMessageAt = c.CreatedAt.UTC(), c.LastMessageAt.UTC()
	return &c, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *data.Conversation) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO conversations (`+conversationColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ResourceID, pq.Array(c.Participants), c.Key, c.CreatedAt, c.LastMessageAt)
	return translate(err)
}

func (s *Store) GetConversation(ctx context.Context, id string) (*data.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	return c, translate(err)
}

func (s *Store) FindConversation(ctx context.Context, key string) (*data.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE key = $1`, key))
	return c, translate(err)
}

func (s *Store) ListConversationsFor(ctx context.Context, userID string) ([]*data.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE $1 = ANY(participants)`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*data.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE conversations SET last_message_at = GREATEST(last_message_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// ---- messages ----

const messageColumns = `id, conversation_id, sender_id, body, attachments, client_ref, created_at, deleted_at`

func scanMessage(row scanner) (*data.Message, error) {
	var (
		m       data.Message
		raw     []byte
		deleted sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &raw, &m.ClientRef, &m.CreatedAt, &deleted); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if len(m.Attachments) == 0 {
		m.Attachments = nil
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if deleted.Valid {
		t := deleted.Time.UTC()
		m.DeletedAt = &t
	}
	return &m, nil
}

func (s *Store) InsertMessage(ctx context.Context, m *data.Message) error {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []data.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO messages (id, conversation_id, sender_id, body, attachments, client_ref, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ConversationID, m.SenderID, m.Body, string(raw), m.ClientRef, m.CreatedAt)
	return translate(err)
}

func (s *Store) GetMessage(ctx context.Context, id string) (*data.Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx, `
	SELECT `+messageColumns+` FROM messages WHERE id = $1 AND deleted_at IS NULL`, id))
	return m, translate(err)
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]*data.Message, error) {
	args := []any{conversationID}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 AND deleted_at IS NULL`
	if !before.IsZero() {
		args = append(args, before)
		query += ` AND created_at < $2`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*data.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) LastMessages(ctx context.Context, conversationIDs []string) (map[string]*data.Message, error) {
	out := make(map[string]*data.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT DISTINCT ON (conversation_id) `+messageColumns+`
	FROM messages
	WHERE conversation_id = ANY($1) AND deleted_at IS NULL
	ORDER BY conversation_id, created_at DESC, id DESC`, pq.Array(conversationIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out[m.ConversationID] = m
	}
	return out, rows.Err()
}

func (s *Store) CountUnread(ctx context.Context, conversationID, userID string, after time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
	SELECT count(*) FROM messages
	WHERE conversation_id = $1 AND sender_id <> $2 AND deleted_at IS NULL AND created_at > $3`,
		conversationID, userID, after).Scan(&n)
	return n, err
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE messages SET deleted_at = $2, body = '', attachments = '[]'
	WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// ---- read cursors ----

func (s *Store) GetReadCursor(ctx context.Context, conversationID, userID string) (*data.ReadCursor, error) {
	c := data.ReadCursor{ID: data.CursorKey(conversationID, userID), ConversationID: conversationID, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
	SELECT last_read_at, updated_at FROM read_cursors WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID).Scan(&c.LastReadAt, &c.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	c.LastReadAt, c.UpdatedAt = c.LastReadAt.UTC(), c.UpdatedAt.UTC()
	return &c, nil
}

// AdvanceReadCursor upserts with GREATEST so the cursor never regresses.
func (s *Store) AdvanceReadCursor(ctx context.Context, conversationID, userID string, at time.Time) (*data.ReadCursor, error) {
	c := data.ReadCursor{ID: data.CursorKey(conversationID, userID), ConversationID: conversationID, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
	INSERT INTO read_cursors (conversation_id, user_id, last_read_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (conversation_id, user_id) DO UPDATE
	SET last_read_at = GREATEST(read_cursors.last_read_at, EXCLUDED.last_read_at),
		updated_at = EXCLUDED.updated_at
	RETURNING last_read_at, updated_at`,
		conversationID, userID, at).Scan(&c.LastReadAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.LastReadAt, c.UpdatedAt = c.LastReadAt.UTC(), c.UpdatedAt.UTC()
	return &c, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return data.ErrNotFound
	}
	return nil
}
