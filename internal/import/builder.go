package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samhotchkiss/postport/internal/store"
)

// StatusStore is the part of the post store the builder reads and writes.
type StatusStore interface {
	FindDuplicateStatus(ctx context.Context, accountID int64, text string) (int64, bool, error)
	BeginStatusTx(ctx context.Context) (StatusTx, error)
}

// StatusTx scopes the creation of one item's media and statuses.
type StatusTx interface {
	CreateMediaAttachment(ctx context.Context, input store.CreateMediaAttachmentInput) (int64, error)
	CreateStatus(ctx context.Context, input store.CreateStatusInput) (int64, error)
	Commit() error
	Rollback(ctx context.Context) error
}

type MediaReader interface {
	Read(uri string) ([]byte, string, error)
}

type LanguageDetector interface {
	Detect(text string) string
}

// NewSQLStatusStore adapts the Postgres status store to StatusStore.
func NewSQLStatusStore(statuses *store.StatusStore) StatusStore {
	return sqlStatusStore{statuses: statuses}
}

type sqlStatusStore struct {
	statuses *store.StatusStore
}

func (s sqlStatusStore) FindDuplicateStatus(ctx context.Context, accountID int64, text string) (int64, bool, error) {
	return s.statuses.FindDuplicateStatus(ctx, accountID, text)
}

func (s sqlStatusStore) BeginStatusTx(ctx context.Context) (StatusTx, error) {
	tx, err := s.statuses.BeginStatusTx(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// PostRequest is one status to create. MediaAttachmentIDs and InReplyToID
// are filled in while persisting.
type PostRequest struct {
	Text               string
	CreatedAt          time.Time
	MediaAttachmentIDs []int64
	InReplyToID        *int64
	Sensitive          bool
	Visibility         string
	SpoilerText        string
	Language           string
}

// BuildPostRequests pairs every chunk with its creation time.
func BuildPostRequests(chunks []Chunk, createdAt []time.Time, language string) ([]PostRequest, error) {
	if len(chunks) != len(createdAt) {
		return nil, fmt.Errorf("got %d chunks but %d timestamps", len(chunks), len(createdAt))
	}
	requests := make([]PostRequest, 0, len(chunks))
	for i, chunk := range chunks {
		requests = append(requests, PostRequest{
			Text:        chunk.Text,
			CreatedAt:   createdAt[i],
			Sensitive:   false,
			Visibility:  store.VisibilityPublic,
			SpoilerText: "",
			Language:    language,
		})
	}
	return requests, nil
}

type BuilderOptions struct {
	MaxChars      int
	Locations     bool
	MapServiceURL string
}

type BuildResult struct {
	Chunks      int
	StatusIDs   []int64
	Skipped     bool
	DuplicateOf int64
}

// Builder turns one source item into a thread of statuses.
type Builder struct {
	statuses StatusStore
	media    MediaReader
	detector LanguageDetector
	opts     BuilderOptions
	logger   *zap.Logger
}

func NewBuilder(
	statuses StatusStore,
	mediaReader MediaReader,
	detector LanguageDetector,
	opts BuilderOptions,
	logger *zap.Logger,
) (*Builder, error) {
	if statuses == nil {
		return nil, fmt.Errorf("status store is required")
	}
	if mediaReader == nil {
		return nil, fmt.Errorf("media reader is required")
	}
	if opts.MaxChars <= MarkerBudget {
		return nil, fmt.Errorf("max characters must be greater than %d", MarkerBudget)
	}
	if strings.TrimSpace(opts.MapServiceURL) == "" {
		opts.MapServiceURL = DefaultMapServiceURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		statuses: statuses,
		media:    mediaReader,
		detector: detector,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Text returns the normalized, optionally geo-annotated text of an item.
func (b *Builder) Text(item SourceItem) string {
	text := NormalizeCaption(item)
	if b.opts.Locations {
		text = AnnotateGeo(text, item.Geo, b.opts.MapServiceURL)
	}
	return text
}

// Build creates the item's statuses, or none when its first chunk was
// already posted. All statuses and media of the item are committed together.
func (b *Builder) Build(ctx context.Context, account store.Account, item SourceItem) (BuildResult, error) {
	text := b.Text(item)
	chunks, err := ChunkText(text, b.opts.MaxChars)
	if err != nil {
		return BuildResult{}, err
	}
	if len(chunks) == 0 {
		return BuildResult{}, fmt.Errorf("caption of item %d produced no chunks", item.Position)
	}
	result := BuildResult{Chunks: len(chunks)}

	duplicateID, found, err := b.statuses.FindDuplicateStatus(ctx, account.ID, chunks[0].Text)
	if err != nil {
		return result, &PersistenceError{Op: "look up duplicate status", Err: err}
	}
	if found {
		result.Skipped = true
		result.DuplicateOf = duplicateID
		return result, nil
	}

	language := account.DefaultLanguage
	if language == "" && b.detector != nil {
		language = b.detector.Detect(text)
	}

	requests, err := BuildPostRequests(chunks, Sequence(BaseTime(item.CreationTimestamp), len(chunks)), language)
	if err != nil {
		return result, err
	}

	ids, err := b.persist(ctx, account, item, requests)
	if err != nil {
		return result, err
	}
	result.StatusIDs = ids
	return result, nil
}

func (b *Builder) persist(
	ctx context.Context,
	account store.Account,
	item SourceItem,
	requests []PostRequest,
) ([]int64, error) {
	tx, err := b.statuses.BeginStatusTx(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "begin status transaction", Err: err}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rollbackErr := tx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			b.logger.Warn("status transaction rollback incomplete",
				zap.Int64("account_id", account.ID),
				zap.Int64("creation_timestamp", item.CreationTimestamp),
				zap.Error(rollbackErr),
			)
		}
	}()

	mediaIDs := make([]int64, 0, len(item.Media))
	for _, ref := range item.Media {
		data, mimeType, err := b.media.Read(ref.URI)
		if err != nil {
			return nil, &MediaReadError{URI: ref.URI, Err: err}
		}
		if ref.MimeType != "" {
			mimeType = ref.MimeType
		}
		mediaID, err := tx.CreateMediaAttachment(ctx, store.CreateMediaAttachmentInput{
			AccountID:   account.ID,
			FileName:    ref.URI,
			ContentType: mimeType,
			Data:        data,
		})
		if err != nil {
			return nil, &PersistenceError{Op: fmt.Sprintf("create media attachment %q", ref.URI), Err: err}
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	ids := make([]int64, 0, len(requests))
	var parentID *int64
	for i, request := range requests {
		request.InReplyToID = parentID
		if i == 0 {
			request.MediaAttachmentIDs = mediaIDs
		}
		id, err := tx.CreateStatus(ctx, store.CreateStatusInput{
			AccountID:          account.ID,
			Text:               request.Text,
			SpoilerText:        request.SpoilerText,
			Sensitive:          request.Sensitive,
			Visibility:         request.Visibility,
			Language:           request.Language,
			InReplyToID:        request.InReplyToID,
			CreatedAt:          request.CreatedAt,
			MediaAttachmentIDs: request.MediaAttachmentIDs,
		})
		if err != nil {
			return nil, &PersistenceError{Op: fmt.Sprintf("create status %d/%d", i+1, len(requests)), Err: err}
		}
		ids = append(ids, id)
		created := id
		parentID = &created
	}

	if err := tx.Commit(); err != nil {
		return nil, &PersistenceError{Op: "commit status transaction", Err: err}
	}
	committed = true
	return ids, nil
}
