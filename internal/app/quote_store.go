// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
	"github.com/jsamuelsen/quotebook/internal/platform/metrics"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

// DefaultStorageKey is the well-known key the collection blob lives under.
const DefaultStorageKey = "citacoes"

const tracerName = "github.com/jsamuelsen/quotebook/internal/app"

// QuoteStore owns the quote collection. It is the only code path allowed to
// mutate the collection: Add and Delete are the sole writers, and every
// successful mutation is persisted before it returns.
//
// The collection is ordered newest first.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes []domain.Quote
	lastID int64

	storage ports.BlobStorage
	key     string
	locale  domain.Locale
	now     func() time.Time
	metrics *metrics.StoreMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// QuoteStoreConfig contains the dependencies of a QuoteStore.
type QuoteStoreConfig struct {
	// Storage persists the collection blob. Required.
	Storage ports.BlobStorage

	// Key overrides DefaultStorageKey.
	Key string

	// Locale selects the language of Statistics. Defaults to English.
	Locale domain.Locale

	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time

	// Metrics is optional.
	Metrics *metrics.StoreMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewQuoteStore creates an empty store. Call Restore to load persisted quotes.
// It panics if cfg.Storage is nil.
func NewQuoteStore(cfg QuoteStoreConfig) *QuoteStore {
	if cfg.Storage == nil {
		panic("app: QuoteStoreConfig.Storage is required")
	}

	key := cfg.Key
	if key == "" {
		key = DefaultStorageKey
	}

	locale := cfg.Locale
	if locale == "" {
		locale = domain.LocaleEnglish
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteStore{
		quotes:  []domain.Quote{},
		storage: cfg.Storage,
		key:     key,
		locale:  locale,
		now:     clock,
		metrics: cfg.Metrics,
		logger:  logger.With(slog.String("component", "app.QuoteStore")),
		tracer:  otel.Tracer(tracerName),
	}
}

// Add validates and stores a new quote, returning it.
// Inputs are trimmed; an empty text or author fails with domain.ValidationError
// and leaves the collection untouched. If the collection cannot be persisted
// the insert is rolled back and the storage error is returned.
func (s *QuoteStore) Add(ctx context.Context, text, author, source string) (domain.Quote, error) {
	text = strings.TrimSpace(text)
	author = strings.TrimSpace(author)
	source = strings.TrimSpace(source)

	if text == "" {
		return domain.Quote{}, domain.NewValidationError("text", "cannot be empty")
	}

	if author == "" {
		return domain.Quote{}, domain.NewValidationError("author", "cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Truncate(time.Millisecond)
	q := domain.Quote{
		ID:        s.nextID(now),
		Text:      text,
		Author:    author,
		Source:    source,
		CreatedAt: now,
	}

	prevLastID := s.lastID
	s.lastID = q.ID
	s.quotes = slices.Insert(s.quotes, 0, q)

	if err := s.persistLocked(ctx); err != nil {
		s.quotes = slices.Delete(s.quotes, 0, 1)
		s.lastID = prevLastID

		return domain.Quote{}, fmt.Errorf("adding quote: %w", err)
	}

	s.metrics.QuoteAdded(len(s.quotes))
	s.log(ctx).InfoContext(ctx, "quote added",
		slog.Int64("quote_id", q.ID),
		slog.String("author", q.Author),
	)

	return q, nil
}

// Delete removes the quote with the given id. It reports false, with no
// storage write, when no such quote exists. Confirming intent with the user is
// the caller's job.
func (s *QuoteStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false, nil
	}

	removed := s.quotes[idx]
	s.quotes = slices.Delete(s.quotes, idx, idx+1)

	if err := s.persistLocked(ctx); err != nil {
		s.quotes = slices.Insert(s.quotes, idx, removed)

		return false, fmt.Errorf("deleting quote %d: %w", id, err)
	}

	s.metrics.QuoteDeleted(len(s.quotes))
	s.log(ctx).InfoContext(ctx, "quote deleted", slog.Int64("quote_id", id))

	return true, nil
}

// Find looks a quote up by id.
func (s *QuoteStore) Find(id int64) (domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Quote{}, false
	}

	return s.quotes[idx], true
}

// ListAuthors returns the distinct authors in ascending lexicographic order.
func (s *QuoteStore) ListAuthors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.authorsLocked()
}

// Filter returns the quotes matching searchText (case-insensitive substring of
// text, author or source) and selectedAuthor (exact match), in collection
// order. Empty criteria match everything. The result is a copy.
func (s *QuoteStore) Filter(searchText, selectedAuthor string) []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterLocked(domain.Filter{SearchText: searchText, SelectedAuthor: selectedAuthor})
}

func (s *QuoteStore) authorsLocked() []string {
	authors := make([]string, 0, len(s.quotes))
	for _, q := range s.quotes {
		authors = append(authors, q.Author)
	}

	slices.Sort(authors)

	return slices.Compact(authors)
}

func (s *QuoteStore) filterLocked(f domain.Filter) []domain.Quote {
	out := make([]domain.Quote, 0, len(s.quotes))
	if f.IsZero() {
		return append(out, s.quotes...)
	}

	for _, q := range s.quotes {
		if f.Matches(q) {
			out = append(out, q)
		}
	}

	return out
}

// Statistics formats a "visible of total" line in the store's locale.
func (s *QuoteStore) Statistics(filteredCount, totalCount int) string {
	return domain.Statistics(s.locale, filteredCount, totalCount)
}

// ExportForCopy renders the quote with the given id as a plain-text line.
func (s *QuoteStore) ExportForCopy(id int64) (string, bool) {
	q, ok := s.Find(id)
	if !ok {
		return "", false
	}

	return q.ExportText(), true
}

// Len returns the number of quotes in the collection.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// View is everything a presentation layer needs to render one screen.
type View struct {
	Quotes  []domain.Quote
	Authors []string
	Stats   string
	Total   int
	// Empty is true when the collection itself (not the filtered subset) has no quotes.
	Empty bool
}

// Visible derives a View for the given filter.
func (s *QuoteStore) Visible(f domain.Filter) View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := s.filterLocked(f)
	total := len(s.quotes)

	return View{
		Quotes:  quotes,
		Authors: s.authorsLocked(),
		Stats:   s.Statistics(len(quotes), total),
		Total:   total,
		Empty:   total == 0,
	}
}

// Persist writes the whole collection to storage, overwriting the prior blob.
func (s *QuoteStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.persistLocked(ctx)
}

// Restore replaces the in-memory collection with the persisted one.
//
// A missing or empty blob yields an empty collection. A blob that cannot be
// decoded also yields an empty collection, and Restore returns a
// domain.CorruptDataError so the caller can warn the user; the store remains
// fully usable. Storage read failures are returned as-is and leave the
// collection unchanged.
func (s *QuoteStore) Restore(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "QuoteStore.Restore",
		trace.WithAttributes(attribute.String("storage.key", s.key)))
	defer span.End()

	blob, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading blob")

		return fmt.Errorf("restoring quotes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok || blob == "" {
		s.reset(nil)
		s.metrics.Restored(0)
		s.log(ctx).DebugContext(ctx, "no persisted quotes", slog.String("key", s.key))

		return nil
	}

	quotes, err := decodeQuotes(blob)
	if err != nil {
		corrupt := domain.NewCorruptDataError(s.key, err)

		s.reset(nil)
		s.metrics.RestoreFailed()
		span.RecordError(corrupt)
		span.SetStatus(codes.Error, "corrupt blob")
		s.log(ctx).WarnContext(ctx, "persisted quotes are corrupt, starting empty",
			slog.String("key", s.key),
			slog.Any("error", err),
		)

		return corrupt
	}

	s.reset(quotes)
	s.metrics.Restored(len(quotes))
	span.SetAttributes(attribute.Int("quotes.count", len(quotes)))
	s.log(ctx).InfoContext(ctx, "quotes restored", slog.Int("count", len(quotes)))

	return nil
}

// persistLocked encodes and writes the collection. Callers hold s.mu.
func (s *QuoteStore) persistLocked(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "QuoteStore.Persist",
		trace.WithAttributes(
			attribute.String("storage.key", s.key),
			attribute.Int("quotes.count", len(s.quotes)),
		))
	defer span.End()

	blob, err := encodeQuotes(s.quotes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encoding")

		return err
	}

	if err := s.storage.Set(ctx, s.key, blob); err != nil {
		s.metrics.PersistFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "writing blob")
		s.log(ctx).ErrorContext(ctx, "failed to persist quotes",
			slog.String("key", s.key),
			slog.Any("error", err),
		)

		return fmt.Errorf("persisting quotes: %w", err)
	}

	return nil
}

// reset installs quotes as the collection and reseeds the id generator.
// Callers hold s.mu.
func (s *QuoteStore) reset(quotes []domain.Quote) {
	if quotes == nil {
		quotes = []domain.Quote{}
	}

	s.quotes = quotes
	s.lastID = 0

	for _, q := range quotes {
		s.lastID = max(s.lastID, q.ID)
	}
}

// nextID derives an id from the clock in milliseconds, bumping past the last
// issued id when the clock has not advanced (or went backwards).
func (s *QuoteStore) nextID(now time.Time) int64 {
	return max(now.UnixMilli(), s.lastID+1)
}

func (s *QuoteStore) indexOf(id int64) int {
	return slices.IndexFunc(s.quotes, func(q domain.Quote) bool { return q.ID == id })
}

func (s *QuoteStore) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}
