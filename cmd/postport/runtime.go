package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/samhotchkiss/postport/internal/config"
	importer "github.com/samhotchkiss/postport/internal/import"
	"github.com/samhotchkiss/postport/internal/language"
	"github.com/samhotchkiss/postport/internal/logger"
	"github.com/samhotchkiss/postport/internal/media"
	"github.com/samhotchkiss/postport/internal/retention"
	"github.com/samhotchkiss/postport/internal/store"
)

// runtime is the set of collaborators one CLI invocation works with.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *sql.DB
	accounts *store.AccountStore
	statuses *store.StatusStore
	blobs    store.BlobStorage
}

func (r *runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

type batchImporter interface {
	Run(ctx context.Context, opts importer.ImportOptions) (importer.ImportReport, error)
}

type retentionRunner interface {
	Run(ctx context.Context, opts retention.Options) (retention.Result, error)
}

var openRuntime = openRuntimeFromEnv

var newBatchImporter = func(rt *runtime) (batchImporter, error) {
	im, err := importer.NewImporter(importer.ImporterConfig{
		Accounts:      rt.accounts,
		Statuses:      importer.NewSQLStatusStore(rt.statuses),
		Detector:      language.NewDetector(),
		MaxChars:      rt.cfg.MaxChars,
		MapServiceURL: rt.cfg.MapServiceURL,
		Logger:        rt.logger,
	})
	if err != nil {
		return nil, err
	}
	return im, nil
}

var newRetentionRunner = func(rt *runtime) retentionRunner {
	return retention.NewJob(rt.accounts, rt.statuses, rt.blobs, rt.cfg.RetentionBatchSize, rt.logger)
}

var createStoreAccount = func(ctx context.Context, rt *runtime, input store.CreateAccountInput) (store.Account, error) {
	return rt.accounts.Create(ctx, input)
}

func openRuntimeFromEnv(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	blobs, err := newBlobStorage(ctx, cfg.Media)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logger:   log,
		db:       db,
		accounts: store.NewAccountStore(db),
		statuses: store.NewStatusStore(db, blobs),
		blobs:    blobs,
	}, nil
}

func newBlobStorage(ctx context.Context, cfg config.MediaConfig) (store.BlobStorage, error) {
	switch cfg.Driver {
	case config.MediaDriverLocal:
		return media.NewLocalStorage(cfg.LocalDir), nil
	case config.MediaDriverS3:
		client, err := media.NewS3Client(media.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		storage := media.NewS3Storage(client, cfg.S3Bucket)
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("prepare media bucket: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unsupported media driver %q", cfg.Driver)
	}
}

func formatCLIError(err error) string {
	if err == nil {
		return ""
	}
	var notFound *importer.AccountNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, retention.ErrAccountNotFound) {
		return fmt.Sprintf("%v\n\nCreate it first with: postport create-account <account-name>", err)
	}
	var tooLong *importer.TextTooLongError
	if errors.As(err, &tooLong) {
		return fmt.Sprintf("%v; raise POSTPORT_MAX_CHARS or shorten the caption", err)
	}
	return err.Error()
}
