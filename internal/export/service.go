package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

// Downloader is the slice of the monitoring API client the export
// service depends on.
type Downloader interface {
	FetchExportFilters(ctx context.Context, onPage func([]parkkihubi.ExportFilters)) error
	DownloadCSV(ctx context.Context, sel parkkihubi.ExportSelection) (*parkkihubi.ExportDownload, error)
}

const defaultVocabularyTTL = 10 * time.Minute

// ServiceConfig holds configuration for the export service.
type ServiceConfig struct {
	Client     Downloader
	Repository Repository
	Logger     zerolog.Logger

	// VocabularyTTL is how long fetched filter vocabularies stay fresh.
	VocabularyTTL time.Duration
}

// Service runs CSV exports against the monitoring API and keeps a
// history of their outcomes.
type Service struct {
	client        Downloader
	repository    Repository
	logger        zerolog.Logger
	vocabularyTTL time.Duration

	mu          sync.RWMutex
	vocabulary  *Vocabulary
	vocabExpiry time.Time
}

// NewService creates a new export service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.VocabularyTTL <= 0 {
		cfg.VocabularyTTL = defaultVocabularyTTL
	}

	return &Service{
		client:        cfg.Client,
		repository:    cfg.Repository,
		logger:        cfg.Logger,
		vocabularyTTL: cfg.VocabularyTTL,
	}
}

// Vocabulary returns the operators and payment zones a selection may
// reference. Results are cached; a stale vocabulary is served when a
// refresh fails and an older one is available.
func (s *Service) Vocabulary(ctx context.Context) (*Vocabulary, error) {
	s.mu.RLock()
	if s.vocabulary != nil && time.Now().Before(s.vocabExpiry) {
		vocab := s.vocabulary
		s.mu.RUnlock()
		return vocab, nil
	}
	s.mu.RUnlock()

	return s.refreshVocabulary(ctx)
}

func (s *Service) refreshVocabulary(ctx context.Context) (*Vocabulary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if s.vocabulary != nil && time.Now().Before(s.vocabExpiry) {
		return s.vocabulary, nil
	}

	vocab, err := s.fetchVocabulary(ctx)
	if err != nil {
		if s.vocabulary != nil {
			s.logger.Warn().Err(err).Msg("serving stale export filters after refresh failure")
			return s.vocabulary, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrVocabularyUnavailable, err)
	}

	s.vocabulary = vocab
	s.vocabExpiry = time.Now().Add(s.vocabularyTTL)

	s.logger.Info().
		Int("operators", len(vocab.Operators)).
		Int("payment_zones", len(vocab.PaymentZones)).
		Msg("refreshed export filter vocabulary")

	return vocab, nil
}

// fetchVocabulary merges all filter pages into one deduplicated vocabulary.
func (s *Service) fetchVocabulary(ctx context.Context) (*Vocabulary, error) {
	var (
		operators     []parkkihubi.Operator
		zones         []parkkihubi.PaymentZone
		seenOperators = make(map[string]bool)
		seenZones     = make(map[string]bool)
	)

	err := s.client.FetchExportFilters(ctx, func(filters []parkkihubi.ExportFilters) {
		for _, f := range filters {
			for _, op := range f.Operators {
				if seenOperators[op.ID] {
					continue
				}
				seenOperators[op.ID] = true
				operators = append(operators, op)
			}
			for _, zone := range f.PaymentZones {
				if seenZones[zone.Code] {
					continue
				}
				seenZones[zone.Code] = true
				zones = append(zones, zone)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return &Vocabulary{
		Operators:    operators,
		PaymentZones: zones,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// Validate checks a selection before an export is attempted. Operator and
// zone membership is only checked when the selection names any; an empty
// selection exports everything.
func (s *Service) Validate(ctx context.Context, sel parkkihubi.ExportSelection) error {
	if sel.TimeStart.IsZero() || sel.TimeEnd.IsZero() {
		return fmt.Errorf("%w: start and end times are required", ErrInvalidSelection)
	}
	if sel.TimeStart.After(sel.TimeEnd) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidSelection)
	}

	if len(sel.OperatorIDs) == 0 && len(sel.ZoneCodes) == 0 {
		return nil
	}

	vocab, err := s.Vocabulary(ctx)
	if err != nil {
		return err
	}

	for _, id := range sel.OperatorIDs {
		if !vocab.HasOperator(id) {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidSelection, id)
		}
	}
	for _, code := range sel.ZoneCodes {
		if !vocab.HasZone(code) {
			return fmt.Errorf("%w: unknown payment zone %q", ErrInvalidSelection, code)
		}
	}

	return nil
}

// Run validates the selection, downloads the CSV export and records the
// outcome. A failed download still leaves a failed record behind so the
// attempt shows up in the export history.
func (s *Service) Run(ctx context.Context, requestedBy string, sel parkkihubi.ExportSelection) (*Record, error) {
	if err := s.Validate(ctx, sel); err != nil {
		return nil, err
	}

	record := &Record{
		ID:          newRecordID(),
		RequestedBy: requestedBy,
		Selection:   sel,
		Status:      StatusRunning,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repository.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create export record: %w", err)
	}

	download, err := s.client.DownloadCSV(ctx, sel)
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.CompletedAt = time.Now().UTC()
		if updateErr := s.repository.Update(ctx, record); updateErr != nil {
			s.logger.Error().Err(updateErr).Str("export_id", record.ID).Msg("failed to record export failure")
		}
		s.logger.Warn().Err(err).Str("export_id", record.ID).Msg("export download failed")
		return record, err
	}

	record.Status = StatusComplete
	record.Filename = download.Filename
	record.Path = download.Path
	record.Bytes = download.Bytes
	record.CompletedAt = time.Now().UTC()

	if err := s.repository.Update(ctx, record); err != nil {
		return record, fmt.Errorf("update export record: %w", err)
	}

	s.logger.Info().
		Str("export_id", record.ID).
		Str("filename", record.Filename).
		Int64("bytes", record.Bytes).
		Msg("export complete")

	return record, nil
}

// List returns the most recent export records, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Record, error) {
	return s.repository.List(ctx, limit)
}

// Get returns a single export record.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.repository.Get(ctx, id)
}

// Open returns a record together with an open handle onto its CSV file.
// The caller closes the reader.
func (s *Service) Open(ctx context.Context, id string) (*Record, io.ReadCloser, error) {
	record, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if record.Status != StatusComplete {
		return record, nil, fmt.Errorf("%w: export %s is %s", ErrFileUnavailable, record.ID, record.Status)
	}

	file, err := os.Open(record.Path)
	if err != nil {
		return record, nil, fmt.Errorf("%w: %v", ErrFileUnavailable, err)
	}

	return record, file, nil
}

func newRecordID() string {
	return "exp_" + uuid.New().String()
}
