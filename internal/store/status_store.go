package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
	VisibilityDirect   = "direct"

	defaultListLimit = 20
	maxListLimit     = 200
)

type Status struct {
	ID          int64             `json:"id"`
	AccountID   int64             `json:"account_id"`
	Text        string            `json:"text"`
	SpoilerText string            `json:"spoiler_text"`
	Sensitive   bool              `json:"sensitive"`
	Visibility  string            `json:"visibility"`
	Language    string            `json:"language,omitempty"`
	InReplyToID *int64            `json:"in_reply_to_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Media       []MediaAttachment `json:"media_attachments"`
}

type MediaAttachment struct {
	ID          int64     `json:"id"`
	StatusID    *int64    `json:"status_id,omitempty"`
	FileKey     string    `json:"file_key"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateStatusInput struct {
	AccountID          int64
	Text               string
	SpoilerText        string
	Sensitive          bool
	Visibility         string
	Language           string
	InReplyToID        *int64
	CreatedAt          time.Time
	MediaAttachmentIDs []int64
}

type CreateMediaAttachmentInput struct {
	AccountID   int64
	FileName    string
	ContentType string
	Data        []byte
}

type StatusStore struct {
	db     *sql.DB
	blobs  BlobStorage
	newKey func() string
}

func NewStatusStore(db *sql.DB, blobs BlobStorage) *StatusStore {
	return &StatusStore{db: db, blobs: blobs, newKey: uuid.NewString}
}

// FindDuplicateStatus looks up a status of the account with exactly the given
// text. Distinct posts that share a first chunk are indistinguishable here.
func (s *StatusStore) FindDuplicateStatus(ctx context.Context, accountID int64, text string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id
		   FROM statuses
		  WHERE account_id = $1
		    AND md5(text) = md5($2)
		    AND text = $2
		  ORDER BY id ASC
		  LIMIT 1`,
		accountID,
		text,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to look up duplicate status: %w", err)
	}
	return id, true, nil
}

// BeginStatusTx starts the transaction that scopes one imported item. The
// caller must Commit or Rollback it.
func (s *StatusStore) BeginStatusTx(ctx context.Context) (*StatusTx, error) {
	if s.blobs == nil {
		return nil, errors.New("blob storage is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin status transaction: %w", err)
	}
	return &StatusTx{tx: tx, blobs: s.blobs, newKey: s.newKey}, nil
}

// ListByAccount returns the newest statuses of an account with their media.
func (s *StatusStore) ListByAccount(ctx context.Context, accountID int64, limit int) ([]Status, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, account_id, text, spoiler_text, sensitive, visibility, language, in_reply_to_id, created_at
		   FROM statuses
		  WHERE account_id = $1
		  ORDER BY created_at DESC, id DESC
		  LIMIT $2`,
		accountID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	statuses := make([]Status, 0, limit)
	indexByID := make(map[int64]int, limit)
	for rows.Next() {
		var (
			status    Status
			language  sql.NullString
			inReplyTo sql.NullInt64
		)
		if err := rows.Scan(
			&status.ID,
			&status.AccountID,
			&status.Text,
			&status.SpoilerText,
			&status.Sensitive,
			&status.Visibility,
			&language,
			&inReplyTo,
			&status.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		status.Language = language.String
		if inReplyTo.Valid {
			parent := inReplyTo.Int64
			status.InReplyToID = &parent
		}
		status.CreatedAt = status.CreatedAt.UTC()
		status.Media = []MediaAttachment{}
		indexByID[status.ID] = len(statuses)
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading status rows: %w", err)
	}
	if len(statuses) == 0 {
		return statuses, nil
	}

	ids := make([]int64, 0, len(statuses))
	for _, status := range statuses {
		ids = append(ids, status.ID)
	}
	media, err := s.listMediaByStatusIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, attachment := range media {
		if attachment.StatusID == nil {
			continue
		}
		if idx, ok := indexByID[*attachment.StatusID]; ok {
			statuses[idx].Media = append(statuses[idx].Media, attachment)
		}
	}

	return statuses, nil
}

// ListIDsCreatedBefore pages through an account's statuses created at or
// before cutoff, ordered by id, starting after afterID.
func (s *StatusStore) ListIDsCreatedBefore(
	ctx context.Context,
	accountID int64,
	cutoff time.Time,
	afterID int64,
	limit int,
) ([]int64, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than zero", ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id
		   FROM statuses
		  WHERE account_id = $1
		    AND created_at <= $2
		    AND id > $3
		  ORDER BY id ASC
		  LIMIT $4`,
		accountID,
		cutoff.UTC(),
		afterID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses before cutoff: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan status id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading status ids: %w", err)
	}
	return ids, nil
}

// ListMediaKeys returns the blob keys of the media attached to the statuses.
func (s *StatusStore) ListMediaKeys(ctx context.Context, statusIDs []int64) ([]string, error) {
	if len(statusIDs) == 0 {
		return []string{}, nil
	}
	media, err := s.listMediaByStatusIDs(ctx, statusIDs)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(media))
	for _, attachment := range media {
		keys = append(keys, attachment.FileKey)
	}
	return keys, nil
}

// DeleteStatuses removes the statuses and their media rows in one
// transaction. Blob objects are left to the caller.
func (s *StatusStore) DeleteStatuses(ctx context.Context, accountID int64, statusIDs []int64) (int, error) {
	if len(statusIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM media_attachments
		  WHERE account_id = $1
		    AND status_id = ANY($2)`,
		accountID,
		pq.Array(statusIDs),
	); err != nil {
		return 0, fmt.Errorf("failed to delete media attachments: %w", err)
	}

	result, err := tx.ExecContext(
		ctx,
		`DELETE FROM statuses
		  WHERE account_id = $1
		    AND id = ANY($2)`,
		accountID,
		pq.Array(statusIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete statuses: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted statuses: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete transaction: %w", err)
	}
	committed = true

	return int(deleted), nil
}

func (s *StatusStore) listMediaByStatusIDs(ctx context.Context, statusIDs []int64) ([]MediaAttachment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, status_id, file_key, content_type, file_size, created_at
		   FROM media_attachments
		  WHERE status_id = ANY($1)
		  ORDER BY id ASC`,
		pq.Array(statusIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list media attachments: %w", err)
	}
	defer rows.Close()

	media := make([]MediaAttachment, 0)
	for rows.Next() {
		var (
			attachment MediaAttachment
			statusID   sql.NullInt64
		)
		if err := rows.Scan(
			&attachment.ID,
			&statusID,
			&attachment.FileKey,
			&attachment.ContentType,
			&attachment.FileSize,
			&attachment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan media attachment row: %w", err)
		}
		if statusID.Valid {
			id := statusID.Int64
			attachment.StatusID = &id
		}
		attachment.CreatedAt = attachment.CreatedAt.UTC()
		media = append(media, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading media attachment rows: %w", err)
	}
	return media, nil
}

// StatusTx is the explicit transaction handle for one imported item. Media
// blobs uploaded through it are deleted again when it rolls back.
type StatusTx struct {
	tx       *sql.Tx
	blobs    BlobStorage
	newKey   func() string
	uploaded []string
}

func (t *StatusTx) CreateMediaAttachment(ctx context.Context, input CreateMediaAttachmentInput) (int64, error) {
	if input.AccountID <= 0 {
		return 0, fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	if len(input.Data) == 0 {
		return 0, fmt.Errorf("%w: media file %q is empty", ErrInvalidInput, input.FileName)
	}
	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		return 0, fmt.Errorf("%w: content type is required", ErrInvalidInput)
	}

	key := mediaObjectKey(input.AccountID, t.newKey(), input.FileName)
	if err := t.blobs.Put(ctx, key, input.Data, contentType); err != nil {
		return 0, fmt.Errorf("failed to store media file %q: %w", input.FileName, err)
	}
	t.uploaded = append(t.uploaded, key)

	var id int64
	err := t.tx.QueryRowContext(
		ctx,
		`INSERT INTO media_attachments (account_id, file_key, content_type, file_size)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		input.AccountID,
		key,
		contentType,
		int64(len(input.Data)),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert media attachment: %w", err)
	}
	return id, nil
}

func (t *StatusTx) CreateStatus(ctx context.Context, input CreateStatusInput) (int64, error) {
	if input.AccountID <= 0 {
		return 0, fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	if input.CreatedAt.IsZero() {
		return 0, fmt.Errorf("%w: created_at is required", ErrInvalidInput)
	}
	visibility := strings.TrimSpace(input.Visibility)
	if visibility == "" {
		visibility = VisibilityPublic
	}
	if !isValidVisibility(visibility) {
		return 0, fmt.Errorf("%w: visibility %q", ErrInvalidInput, visibility)
	}

	var id int64
	err := t.tx.QueryRowContext(
		ctx,
		`INSERT INTO statuses (
			account_id,
			text,
			spoiler_text,
			sensitive,
			visibility,
			language,
			in_reply_to_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		input.AccountID,
		input.Text,
		input.SpoilerText,
		input.Sensitive,
		visibility,
		nullableString(input.Language),
		nullableInt64(input.InReplyToID),
		input.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert status: %w", err)
	}

	if len(input.MediaAttachmentIDs) == 0 {
		return id, nil
	}

	result, err := t.tx.ExecContext(
		ctx,
		`UPDATE media_attachments
		    SET status_id = $1
		  WHERE account_id = $2
		    AND status_id IS NULL
		    AND id = ANY($3)`,
		id,
		input.AccountID,
		pq.Array(input.MediaAttachmentIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to attach media to status %d: %w", id, err)
	}
	attached, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count attached media: %w", err)
	}
	if int(attached) != len(input.MediaAttachmentIDs) {
		return 0, fmt.Errorf(
			"attached %d of %d media attachments to status %d",
			attached,
			len(input.MediaAttachmentIDs),
			id,
		)
	}
	return id, nil
}

func (t *StatusTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status transaction: %w", err)
	}
	t.uploaded = nil
	return nil
}

// Rollback aborts the transaction and removes uploaded blobs. Calling it
// after Commit is a no-op.
func (t *StatusTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		// Committed, or the commit itself failed; uploaded is only non-empty in the latter case.
		err = nil
	}

	var blobErrs []error
	for _, key := range t.uploaded {
		if delErr := t.blobs.Delete(ctx, key); delErr != nil {
			blobErrs = append(blobErrs, fmt.Errorf("delete media object %q: %w", key, delErr))
		}
	}
	t.uploaded = nil

	if err != nil {
		blobErrs = append([]error{fmt.Errorf("failed to roll back status transaction: %w", err)}, blobErrs...)
	}
	return errors.Join(blobErrs...)
}

func mediaObjectKey(accountID int64, id, fileName string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	return "media/" + strconv.FormatInt(accountID, 10) + "/" + id + ext
}

func isValidVisibility(visibility string) bool {
	switch visibility {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate, VisibilityDirect:
		return true
	default:
		return false
	}
}
