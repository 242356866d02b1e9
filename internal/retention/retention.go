package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samhotchkiss/postport/internal/store"
)

const defaultBatchSize = 100

var ErrAccountNotFound = errors.New("account not found")

type accountLookup interface {
	GetByUsername(ctx context.Context, username string) (store.Account, error)
}

type statusPruner interface {
	ListIDsCreatedBefore(ctx context.Context, accountID int64, cutoff time.Time, afterID int64, limit int) ([]int64, error)
	ListMediaKeys(ctx context.Context, statusIDs []int64) ([]string, error)
	DeleteStatuses(ctx context.Context, accountID int64, statusIDs []int64) (int, error)
}

type blobDeleter interface {
	Delete(ctx context.Context, key string) error
}

type Options struct {
	Username string
	Cutoff   time.Time
	DryRun   bool
}

type Result struct {
	StatusesScanned int
	MediaScanned    int
	StatusesDeleted int
	MediaDeleted    int
}

// Job deletes an account's statuses created at or before a cutoff, together
// with their media rows and blob objects.
type Job struct {
	accounts  accountLookup
	statuses  statusPruner
	blobs     blobDeleter
	batchSize int
	logger    *zap.Logger
}

func NewJob(
	accounts accountLookup,
	statuses statusPruner,
	blobs blobDeleter,
	batchSize int,
	logger *zap.Logger,
) *Job {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		accounts:  accounts,
		statuses:  statuses,
		blobs:     blobs,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context, opts Options) (Result, error) {
	if j.accounts == nil || j.statuses == nil {
		return Result{}, fmt.Errorf("retention job is not configured")
	}
	username := store.NormalizeUsername(opts.Username)
	if strings.TrimSpace(username) == "" {
		return Result{}, fmt.Errorf("account name is required")
	}
	if opts.Cutoff.IsZero() {
		return Result{}, fmt.Errorf("cutoff is required")
	}

	account, err := j.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
		}
		return Result{}, fmt.Errorf("resolve account %q: %w", username, err)
	}

	log := j.logger.With(
		zap.String("account", account.Username),
		zap.Time("cutoff", opts.Cutoff.UTC()),
		zap.Bool("dry_run", opts.DryRun),
	)

	var result Result
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids, err := j.statuses.ListIDsCreatedBefore(ctx, account.ID, opts.Cutoff, afterID, j.batchSize)
		if err != nil {
			return result, fmt.Errorf("list statuses before cutoff: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		afterID = ids[len(ids)-1]

		keys, err := j.statuses.ListMediaKeys(ctx, ids)
		if err != nil {
			return result, fmt.Errorf("list media for statuses: %w", err)
		}
		result.StatusesScanned += len(ids)
		result.MediaScanned += len(keys)

		if !opts.DryRun {
			deleted, err := j.statuses.DeleteStatuses(ctx, account.ID, ids)
			if err != nil {
				return result, fmt.Errorf("delete statuses: %w", err)
			}
			result.StatusesDeleted += deleted
			result.MediaDeleted += j.deleteBlobs(ctx, log, keys)
		}

		log.Info("retention batch processed",
			zap.Int("statuses", len(ids)),
			zap.Int("media", len(keys)),
			zap.Int64("last_id", afterID),
		)

		if len(ids) < j.batchSize {
			break
		}
	}

	log.Info("retention completed",
		zap.Int("statuses_scanned", result.StatusesScanned),
		zap.Int("statuses_deleted", result.StatusesDeleted),
		zap.Int("media_deleted", result.MediaDeleted),
	)
	return result, nil
}

func (j *Job) deleteBlobs(ctx context.Context, log *zap.Logger, keys []string) int {
	if j.blobs == nil {
		return 0
	}
	deleted := 0
	for _, key := range keys {
		if err := j.blobs.Delete(ctx, key); err != nil {
			log.Warn("failed to delete media object from storage", zap.Error(err), zap.String("object_key", key))
			continue
		}
		deleted++
	}
	return deleted
}
