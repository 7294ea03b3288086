package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/model"
)

const messageColumns = "id, thread_id, role, content, status, stream_id, client_id, model, metadata, reasoning, attachments, created_at, updated_at"

type sqliteRepository struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Option configures the SQLite repository.
type Option func(*sqliteRepository)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *sqliteRepository) { r.now = now }
}

func NewSQLiteRepository(db *sql.DB, opts ...Option) Repository {
	r := &sqliteRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// timestamp returns a strictly increasing UTC time so that creation order is
// total even when the clock does not advance between two writes.
func (r *sqliteRepository) timestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.now().UTC()
	if !t.After(r.last) {
		t = r.last.Add(time.Nanosecond)
	}
	r.last = t
	return t
}

// --- Thread Operations ---

func (r *sqliteRepository) CreateThread(ctx context.Context, thread *model.Thread) error {
	r.stampThread(thread)
	return insertThread(ctx, r.db, thread)
}

// stampThread fills the defaults of a thread about to be inserted.
func (r *sqliteRepository) stampThread(thread *model.Thread) {
	if thread.Status == "" {
		thread.Status = model.ThreadIdle
	}
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = r.timestamp()
	}
	if thread.UpdatedAt.IsZero() {
		thread.UpdatedAt = thread.CreatedAt
	}
}

func (r *sqliteRepository) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	query := "SELECT id, user_id, title, status, created_at, updated_at FROM threads WHERE id = ?"
	thread, err := scanThread(r.db.QueryRowContext(ctx, query, threadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return thread, nil
}

func (r *sqliteRepository) ListThreads(ctx context.Context, userID string) ([]*model.Thread, error) {
	query := "SELECT id, user_id, title, status, created_at, updated_at FROM threads WHERE user_id = ? ORDER BY updated_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	threads := []*model.Thread{}
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

func (r *sqliteRepository) UpdateThreadTitle(ctx context.Context, threadID, newTitle string) error {
	query := "UPDATE threads SET title = ?, updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, newTitle, r.timestamp().UnixNano(), threadID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepository) DeleteThread(ctx context.Context, threadID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", threadID)
	return err
}

func (r *sqliteRepository) RefreshThreadStatus(ctx context.Context, threadID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := refreshThreadStatus(ctx, tx, threadID, r.timestamp()); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Message Operations ---

func (r *sqliteRepository) CreateUserMessage(ctx context.Context, threadID, content, clientID string, attachments []model.Attachment) (*model.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := threadExists(ctx, tx, threadID); err != nil {
		return nil, err
	}
	msg, err := r.insertUserMessage(ctx, tx, threadID, content, clientID, attachments)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit user message: %w", err)
	}
	return msg, nil
}

func (r *sqliteRepository) CreateExchange(ctx context.Context, ex *model.Exchange) (*model.Message, *model.Message, error) {
	if ex.StreamID == "" {
		return nil, nil, fmt.Errorf("%w: stream id is required", app_errors.ErrValidation)
	}
	if ex.Model == "" {
		return nil, nil, fmt.Errorf("%w: model is required to create an assistant message", app_errors.ErrValidation)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	threadID := ex.ThreadID
	if ex.NewThread != nil {
		r.stampThread(ex.NewThread)
		if err := insertThread(ctx, tx, ex.NewThread); err != nil {
			return nil, nil, err
		}
		threadID = ex.NewThread.ID
	} else if err := threadExists(ctx, tx, threadID); err != nil {
		return nil, nil, err
	}
	if err := ensureIdle(ctx, tx, threadID); err != nil {
		return nil, nil, err
	}

	user, err := r.insertUserMessage(ctx, tx, threadID, ex.Content, ex.ClientID, ex.Attachments)
	if err != nil {
		return nil, nil, err
	}
	assistant, err := r.insertAssistantMessage(ctx, tx, ex.StreamID, threadID, model.MessagePatch{Model: ex.Model})
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("could not commit exchange: %w", err)
	}
	if ex.NewThread != nil {
		ex.NewThread.Status = model.ThreadStreaming
		ex.NewThread.UpdatedAt = assistant.UpdatedAt
	}
	return user, assistant, nil
}

func (r *sqliteRepository) insertUserMessage(ctx context.Context, tx *sql.Tx, threadID, content, clientID string, attachments []model.Attachment) (*model.Message, error) {
	now := r.timestamp()
	msg := &model.Message{
		ID:          uuid.NewString(),
		ThreadID:    threadID,
		Role:        model.RoleUser,
		Content:     content,
		Status:      model.StatusCompleted,
		ClientID:    clientID,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := insertMessage(ctx, tx, msg); err != nil {
		return nil, err
	}
	// A user submission always precedes a generation.
	if err := setThreadStatus(ctx, tx, threadID, model.ThreadStreaming, now); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *sqliteRepository) UpsertAssistantMessage(ctx context.Context, streamID, threadID string, patch model.MessagePatch) (*model.Message, error) {
	if streamID == "" {
		return nil, fmt.Errorf("%w: stream id is required", app_errors.ErrValidation)
	}
	if patch.Status != nil && !validStatus(*patch.Status) {
		return nil, fmt.Errorf("%w: unknown message status %q", app_errors.ErrValidation, *patch.Status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := queryMessage(ctx, tx, "stream_id = ?", streamID)
	switch {
	case err == nil:
		return r.mergeAssistantMessage(ctx, tx, existing, patch)
	case errors.Is(err, ErrNotFound):
		return r.createAssistantMessage(ctx, tx, streamID, threadID, patch)
	default:
		return nil, err
	}
}

func (r *sqliteRepository) mergeAssistantMessage(ctx context.Context, tx *sql.Tx, existing *model.Message, patch model.MessagePatch) (*model.Message, error) {
	if existing.Status.IsTerminal() {
		return existing, nil
	}
	if patch.Status != nil && !existing.Status.CanTransitionTo(*patch.Status) {
		return nil, fmt.Errorf("%w: cannot move message from %s to %s", app_errors.ErrValidation, existing.Status, *patch.Status)
	}

	updated := *existing
	if !applyPatch(&updated, patch) {
		return existing, nil
	}
	now := r.timestamp()
	updated.UpdatedAt = now

	metadata, err := encodeJSON(updated.Metadata)
	if err != nil {
		return nil, err
	}
	query := `
		UPDATE messages
		SET content = ?, status = ?, reasoning = ?, metadata = ?, model = ?, client_id = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = tx.ExecContext(ctx, query, updated.Content, updated.Status, nullString(updated.Reasoning), metadata,
		nullString(updated.Model), nullString(updated.ClientID), now.UnixNano(), updated.ID)
	if err != nil {
		return nil, fmt.Errorf("could not update assistant message: %w", err)
	}

	if updated.Status != existing.Status {
		if err := setThreadStatus(ctx, tx, updated.ThreadID, model.ThreadStatusFor(updated.Status), now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit assistant message: %w", err)
	}
	return &updated, nil
}

func (r *sqliteRepository) createAssistantMessage(ctx context.Context, tx *sql.Tx, streamID, threadID string, patch model.MessagePatch) (*model.Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: unknown stream %s and no thread to create it in", app_errors.ErrValidation, streamID)
	}
	if patch.Model == "" {
		return nil, fmt.Errorf("%w: model is required to create an assistant message", app_errors.ErrValidation)
	}
	if patch.Status != nil && *patch.Status != model.StatusStreaming {
		return nil, fmt.Errorf("%w: a new assistant message must start streaming, not %s", app_errors.ErrValidation, *patch.Status)
	}
	if err := threadExists(ctx, tx, threadID); err != nil {
		return nil, err
	}
	if err := ensureIdle(ctx, tx, threadID); err != nil {
		return nil, err
	}

	msg, err := r.insertAssistantMessage(ctx, tx, streamID, threadID, patch)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit assistant message: %w", err)
	}
	return msg, nil
}

// insertAssistantMessage writes a streaming assistant message. Callers have
// already checked that the thread is idle.
func (r *sqliteRepository) insertAssistantMessage(ctx context.Context, tx *sql.Tx, streamID, threadID string, patch model.MessagePatch) (*model.Message, error) {
	now := r.timestamp()
	msg := &model.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      model.RoleAssistant,
		StreamID:  streamID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyPatch(msg, patch)
	msg.Status = model.StatusStreaming

	if err := insertMessage(ctx, tx, msg); err != nil {
		return nil, err
	}
	if err := setThreadStatus(ctx, tx, threadID, model.ThreadStreaming, now); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *sqliteRepository) TruncateFrom(ctx context.Context, threadID, messageID string, inclusive bool, preserveAfter *time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt, rowID, err := messagePosition(ctx, tx, threadID, messageID)
	if err != nil {
		return 0, err
	}

	op := ">"
	if inclusive {
		op = ">="
	}
	query := fmt.Sprintf(`
		DELETE FROM messages
		WHERE thread_id = ? AND (created_at > ? OR (created_at = ? AND rowid %s ?))
	`, op)
	args := []any{threadID, createdAt, createdAt, rowID}
	if preserveAfter != nil {
		query += " AND created_at <= ?"
		args = append(args, preserveAfter.UnixNano())
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("could not truncate messages: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := refreshThreadStatus(ctx, tx, threadID, r.timestamp()); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("could not commit truncation: %w", err)
	}
	return deleted, nil
}

func (r *sqliteRepository) CopyMessages(ctx context.Context, srcThreadID, uptoMessageID string, dst *model.Thread) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt, rowID, err := messagePosition(ctx, tx, srcThreadID, uptoMessageID)
	if err != nil {
		return 0, err
	}

	rows, err := tx.QueryContext(ctx, "SELECT "+messageColumns+` FROM messages
		WHERE thread_id = ? AND (created_at < ? OR (created_at = ? AND rowid <= ?))
		ORDER BY created_at ASC, rowid ASC`, srcThreadID, createdAt, createdAt, rowID)
	if err != nil {
		return 0, err
	}
	source, err := collectMessages(rows)
	if err != nil {
		return 0, err
	}

	now := r.timestamp()
	dst.Status = model.ThreadIdle
	dst.UpdatedAt = now
	if dst.CreatedAt.IsZero() {
		dst.CreatedAt = now
	}
	if len(source) > 0 {
		dst.Status = model.ThreadStatusFor(branchStatus(source[len(source)-1].Status))
	}
	if err := insertThread(ctx, tx, dst); err != nil {
		return 0, err
	}

	for i := range source {
		msg := source[i]
		msg.ID = uuid.NewString()
		msg.ThreadID = dst.ID
		// Stream ids are never reused.
		msg.StreamID = ""
		msg.ClientID = ""
		if msg.Status == model.StatusStreaming {
			msg.Status = branchStatus(msg.Status)
			msg.Metadata = &model.Metadata{Error: "branched before generation finished"}
		}
		msg.UpdatedAt = now
		if err := insertMessage(ctx, tx, &msg); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("could not commit branch: %w", err)
	}
	return len(source), nil
}

// branchStatus freezes an in-flight status for a copied message.
func branchStatus(s model.MessageStatus) model.MessageStatus {
	if s == model.StatusStreaming {
		return model.StatusError
	}
	return s
}

func (r *sqliteRepository) GetMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC", threadID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *sqliteRepository) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	return queryMessage(ctx, r.db, "id = ?", messageID)
}

func (r *sqliteRepository) GetMessageByStreamID(ctx context.Context, streamID string) (*model.Message, error) {
	return queryMessage(ctx, r.db, "stream_id = ?", streamID)
}

func (r *sqliteRepository) GetStreamingMessage(ctx context.Context, threadID string) (*model.Message, error) {
	return queryMessage(ctx, r.db, "thread_id = ? AND status = 'streaming'", threadID)
}

func (r *sqliteRepository) ListStaleStreaming(ctx context.Context, updatedBefore time.Time) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE status = 'streaming' AND updated_at < ? ORDER BY updated_at ASC",
		updatedBefore.UnixNano())
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// --- Helper Functions ---

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func queryMessage(ctx context.Context, q queryer, where string, args ...any) (*model.Message, error) {
	row := q.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE "+where+" LIMIT 1", args...)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func collectMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()
	messages := []model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func scanMessage(s rowScanner) (*model.Message, error) {
	var (
		msg                                                        model.Message
		role, status                                               string
		streamID, clientID, modelName, metadata, reasoning, attach sql.NullString
		createdAt, updatedAt                                       int64
	)
	if err := s.Scan(&msg.ID, &msg.ThreadID, &role, &msg.Content, &status, &streamID, &clientID,
		&modelName, &metadata, &reasoning, &attach, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	msg.Role = model.Role(role)
	msg.Status = model.MessageStatus(status)
	msg.StreamID = streamID.String
	msg.ClientID = clientID.String
	msg.Model = modelName.String
	msg.Reasoning = reasoning.String
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	msg.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if metadata.Valid && metadata.String != "" {
		var md model.Metadata
		if err := json.Unmarshal([]byte(metadata.String), &md); err != nil {
			return nil, fmt.Errorf("could not decode metadata for message %s: %w", msg.ID, err)
		}
		msg.Metadata = &md
	}
	if attach.Valid && attach.String != "" {
		if err := json.Unmarshal([]byte(attach.String), &msg.Attachments); err != nil {
			return nil, fmt.Errorf("could not decode attachments for message %s: %w", msg.ID, err)
		}
	}
	return &msg, nil
}

func scanThread(s rowScanner) (*model.Thread, error) {
	var thread model.Thread
	var status string
	var createdAt, updatedAt int64
	if err := s.Scan(&thread.ID, &thread.UserID, &thread.Title, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	thread.Status = model.ThreadStatus(status)
	thread.CreatedAt = time.Unix(0, createdAt).UTC()
	thread.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &thread, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, msg *model.Message) error {
	metadata, err := encodeJSON(msg.Metadata)
	if err != nil {
		return err
	}
	var attachments sql.NullString
	if len(msg.Attachments) > 0 {
		if attachments, err = encodeJSON(msg.Attachments); err != nil {
			return err
		}
	}
	query := "INSERT INTO messages (" + messageColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err = tx.ExecContext(ctx, query,
		msg.ID,
		msg.ThreadID,
		msg.Role,
		msg.Content,
		msg.Status,
		nullString(msg.StreamID),
		nullString(msg.ClientID),
		nullString(msg.Model),
		metadata,
		nullString(msg.Reasoning),
		attachments,
		msg.CreatedAt.UnixNano(),
		msg.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: message violates stream uniqueness: %v", app_errors.ErrConflict, err)
		}
		return fmt.Errorf("could not insert message: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertThread(ctx context.Context, e execer, thread *model.Thread) error {
	query := "INSERT INTO threads (id, user_id, title, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	_, err := e.ExecContext(ctx, query, thread.ID, thread.UserID, thread.Title, thread.Status,
		thread.CreatedAt.UnixNano(), thread.UpdatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: thread %s already exists", app_errors.ErrConflict, thread.ID)
		}
		return fmt.Errorf("could not insert thread: %w", err)
	}
	return nil
}

// ensureIdle fails with ErrConflict while the thread has a streaming message.
func ensureIdle(ctx context.Context, tx *sql.Tx, threadID string) error {
	msg, err := queryMessage(ctx, tx, "thread_id = ? AND status = 'streaming'", threadID)
	if err == nil {
		return fmt.Errorf("%w: thread %s is already generating (stream %s)", app_errors.ErrConflict, threadID, msg.StreamID)
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func threadExists(ctx context.Context, tx *sql.Tx, threadID string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM threads WHERE id = ?", threadID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func messagePosition(ctx context.Context, tx *sql.Tx, threadID, messageID string) (createdAt, rowID int64, err error) {
	err = tx.QueryRowContext(ctx, "SELECT created_at, rowid FROM messages WHERE id = ? AND thread_id = ?", messageID, threadID).
		Scan(&createdAt, &rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	return createdAt, rowID, err
}

func setThreadStatus(ctx context.Context, tx *sql.Tx, threadID string, status model.ThreadStatus, now time.Time) error {
	_, err := tx.ExecContext(ctx, "UPDATE threads SET status = ?, updated_at = ? WHERE id = ?", status, now.UnixNano(), threadID)
	if err != nil {
		return fmt.Errorf("could not update thread status: %w", err)
	}
	return nil
}

// refreshThreadStatus derives the thread status from its messages: streaming
// while any message streams, otherwise the status of the last message.
func refreshThreadStatus(ctx context.Context, tx *sql.Tx, threadID string, now time.Time) error {
	var status string
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM messages WHERE thread_id = ?
		ORDER BY (status = 'streaming') DESC, created_at DESC, rowid DESC LIMIT 1
	`, threadID).Scan(&status)
	next := model.ThreadIdle
	switch {
	case err == nil:
		next = model.ThreadStatusFor(model.MessageStatus(status))
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}
	return setThreadStatus(ctx, tx, threadID, next, now)
}

// applyPatch merges p into msg and reports whether anything changed.
func applyPatch(msg *model.Message, p model.MessagePatch) bool {
	changed := false
	if p.Status != nil && *p.Status != msg.Status {
		msg.Status = *p.Status
		changed = true
	}
	if p.Content != nil && *p.Content != msg.Content {
		msg.Content = *p.Content
		changed = true
	}
	if p.Reasoning != nil && *p.Reasoning != msg.Reasoning {
		msg.Reasoning = *p.Reasoning
		changed = true
	}
	if p.Metadata != nil && !reflect.DeepEqual(p.Metadata, msg.Metadata) {
		md := *p.Metadata
		msg.Metadata = &md
		changed = true
	}
	if p.Model != "" && p.Model != msg.Model {
		msg.Model = p.Model
		changed = true
	}
	if p.ClientID != "" && p.ClientID != msg.ClientID {
		msg.ClientID = p.ClientID
		changed = true
	}
	return changed
}

func validStatus(s model.MessageStatus) bool {
	return s == model.StatusStreaming || s.IsTerminal()
}

func encodeJSON(v any) (sql.NullString, error) {
	if v == nil || reflect.ValueOf(v).IsNil() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("could not encode column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
