package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/samhotchkiss/postport/internal/media"
	"github.com/samhotchkiss/postport/internal/store"
)

type AccountLookup interface {
	GetByUsername(ctx context.Context, username string) (store.Account, error)
}

type ImportOptions struct {
	ExportPath string
	// MediaRoot resolves media URIs; defaults to the export's directory.
	MediaRoot     string
	Username      string
	Locations     bool
	SummaryWriter io.Writer
}

type ImportReport struct {
	ItemsTotal      int
	ItemsImported   int
	ItemsSkipped    int
	ItemsFailed     int
	StatusesCreated int
}

type Importer struct {
	accounts       AccountLookup
	statuses       StatusStore
	detector       LanguageDetector
	maxChars       int
	mapServiceURL  string
	logger         *zap.Logger
	newMediaReader func(root string) MediaReader
	loadItems      func(path string) ([]SourceItem, error)
}

type ImporterConfig struct {
	Accounts      AccountLookup
	Statuses      StatusStore
	Detector      LanguageDetector
	MaxChars      int
	MapServiceURL string
	Logger        *zap.Logger
}

func NewImporter(cfg ImporterConfig) (*Importer, error) {
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("account lookup is required")
	}
	if cfg.Statuses == nil {
		return nil, fmt.Errorf("status store is required")
	}
	if cfg.MaxChars <= MarkerBudget {
		return nil, fmt.Errorf("max characters must be greater than %d", MarkerBudget)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		accounts:      cfg.Accounts,
		statuses:      cfg.Statuses,
		detector:      cfg.Detector,
		maxChars:      cfg.MaxChars,
		mapServiceURL: cfg.MapServiceURL,
		logger:        logger,
		newMediaReader: func(root string) MediaReader {
			return media.NewSource(root)
		},
		loadItems: ParseExportFile,
	}, nil
}

// Run imports every item of the export into the account, oldest first, one
// item at a time. A caption that is too long fails only its item. Any other
// item failure stops the batch; items committed before it stay.
func (im *Importer) Run(ctx context.Context, opts ImportOptions) (ImportReport, error) {
	username := store.NormalizeUsername(opts.Username)
	account, err := im.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ImportReport{}, &AccountNotFoundError{Username: username}
		}
		return ImportReport{}, fmt.Errorf("failed to resolve account %q: %w", username, err)
	}

	items, err := im.loadItems(opts.ExportPath)
	if err != nil {
		return ImportReport{}, err
	}
	SortSourceItems(items)

	mediaRoot := strings.TrimSpace(opts.MediaRoot)
	if mediaRoot == "" {
		mediaRoot = filepath.Dir(opts.ExportPath)
	}
	builder, err := NewBuilder(
		im.statuses,
		im.newMediaReader(mediaRoot),
		im.detector,
		BuilderOptions{
			MaxChars:      im.maxChars,
			Locations:     opts.Locations,
			MapServiceURL: im.mapServiceURL,
		},
		im.logger,
	)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{ItemsTotal: len(items)}
	log := im.logger.With(zap.String("account", account.Username), zap.Int64("account_id", account.ID))
	log.Info("import started", zap.Int("items", len(items)), zap.Bool("locations", opts.Locations))

	for _, item := range items {
		result, err := builder.Build(ctx, account, item)
		fields := []zap.Field{
			zap.Int("position", item.Position),
			zap.Int64("creation_timestamp", item.CreationTimestamp),
			zap.Int("chunks", result.Chunks),
		}
		if err != nil {
			itemErr := &ItemError{
				Position:          item.Position,
				CreationTimestamp: item.CreationTimestamp,
				Chunks:            result.Chunks,
				Err:               err,
			}
			report.ItemsFailed++
			var tooLong *TextTooLongError
			if errors.As(err, &tooLong) {
				log.Warn("item skipped: text too long", append(fields, zap.Error(err))...)
				continue
			}
			log.Error("import aborted", append(fields, zap.Error(err), zap.Int("statuses_created", report.StatusesCreated))...)
			writeImportSummary(opts.SummaryWriter, report)
			return report, itemErr
		}

		if result.Skipped {
			report.ItemsSkipped++
			log.Info("item skipped: already imported", append(fields, zap.Int64("duplicate_of", result.DuplicateOf))...)
			continue
		}

		report.ItemsImported++
		report.StatusesCreated += len(result.StatusIDs)
		log.Info("item imported", append(fields, zap.Int("statuses_created", report.StatusesCreated))...)
	}

	writeImportSummary(opts.SummaryWriter, report)
	return report, nil
}

func writeImportSummary(w io.Writer, report ImportReport) {
	if w == nil {
		return
	}
	_, _ = fmt.Fprintf(
		w,
		"Import: items=%d imported=%d skipped=%d failed=%d statuses_created=%d\n",
		report.ItemsTotal,
		report.ItemsImported,
		report.ItemsSkipped,
		report.ItemsFailed,
		report.StatusesCreated,
	)
}
