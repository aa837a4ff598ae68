package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/jsamuelsen/quotebook/internal/domain"
)

// createdAtLayout matches the ISO-8601 form browsers produce with toISOString.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	errBlobNotArray = errors.New("blob is not a JSON array")
	errDuplicateID  = errors.New("duplicate quote id")
	errTrailingData = errors.New("unexpected data after JSON array")
	errIDNotNumber  = errors.New("id must be a JSON number")
)

// blobValidator checks decoded records before they enter the collection.
var blobValidator = newBlobValidator()

func newBlobValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return v
}

// encodedQuote is the persisted shape of a quote.
type encodedQuote struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	Source    string `json:"source"`
	CreatedAt string `json:"createdAt"`
}

// storedQuote is the decode-side shape. It accepts both the English field names
// and the Portuguese ones written by the browser version of the app.
type storedQuote struct {
	ID        json.RawMessage `json:"id"`
	Text      *string         `json:"text"`
	Texto     *string         `json:"texto"`
	Author    *string         `json:"author"`
	Autor     *string         `json:"autor"`
	Source    *string         `json:"source"`
	Fonte     *string         `json:"fonte"`
	CreatedAt *string         `json:"createdAt"`
	Data      *string         `json:"data"`
}

// quoteRecord is a normalized stored quote, ready for validation.
type quoteRecord struct {
	ID        string `validate:"required,number"`
	Text      string `validate:"notblank"`
	Author    string `validate:"notblank"`
	Source    string
	CreatedAt string `validate:"required"`
}

// encodeQuotes serializes the collection into the blob format.
func encodeQuotes(quotes []domain.Quote) (string, error) {
	out := make([]encodedQuote, len(quotes))
	for i, q := range quotes {
		out[i] = encodedQuote{
			ID:        q.ID,
			Text:      q.Text,
			Author:    q.Author,
			Source:    q.Source,
			CreatedAt: q.CreatedAt.UTC().Format(createdAtLayout),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding quotes: %w", err)
	}

	return string(data), nil
}

// decodeQuotes parses and validates a blob. Any failure means the blob as a
// whole is rejected; callers wrap the error as domain.CorruptDataError.
func decodeQuotes(blob string) ([]domain.Quote, error) {
	dec := json.NewDecoder(strings.NewReader(blob))

	var stored []storedQuote
	if err := dec.Decode(&stored); err != nil {
		return nil, fmt.Errorf("parsing blob: %w", err)
	}

	if stored == nil {
		return nil, errBlobNotArray
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}

	quotes := make([]domain.Quote, 0, len(stored))
	seen := make(map[int64]struct{}, len(stored))

	for i, s := range stored {
		q, err := s.toDomain()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("record %d: %w: %d", i, errDuplicateID, q.ID)
		}

		seen[q.ID] = struct{}{}
		quotes = append(quotes, q)
	}

	return quotes, nil
}

// toDomain validates a record. Timestamps are cut to milliseconds, the
// precision the blob is written with, so a restored collection persists
// back unchanged.
func (s storedQuote) toDomain() (domain.Quote, error) {
	if len(s.ID) > 0 && s.ID[0] == '"' {
		return domain.Quote{}, fmt.Errorf("%w, got %s", errIDNotNumber, s.ID)
	}

	rec := quoteRecord{
		ID:        string(s.ID),
		Text:      firstOf(s.Text, s.Texto),
		Author:    firstOf(s.Author, s.Autor),
		Source:    firstOf(s.Source, s.Fonte),
		CreatedAt: firstOf(s.CreatedAt, s.Data),
	}

	if err := blobValidator.Struct(rec); err != nil {
		return domain.Quote{}, err
	}

	id, err := strconv.ParseInt(rec.ID, 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parsing id %q: %w", rec.ID, err)
	}

	if id <= 0 {
		return domain.Quote{}, fmt.Errorf("id must be positive, got %d", id)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parsing createdAt: %w", err)
	}

	return domain.Quote{
		ID:        id,
		Text:      rec.Text,
		Author:    rec.Author,
		Source:    rec.Source,
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}, nil
}

// firstOf returns the first non-nil value, or "" if both are nil.
func firstOf(primary, legacy *string) string {
	if primary != nil {
		return *primary
	}

	if legacy != nil {
		return *legacy
	}

	return ""
}
