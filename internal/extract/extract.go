// Package extract turns uploaded pricelist documents into plain text for the
// parser. PDFs go through pdftotext, spreadsheets are flattened row by row,
// and anything else is read verbatim. An optional AI pass cleans up noisy
// output before parsing.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/config"
)

// Extraction is the outcome of extracting one document. Pages is set only
// for paginated formats.
type Extraction struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Method  string `json:"method"`
	Pages   int    `json:"pages,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Extractor extracts text from a pricelist document on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) Extraction
}

// TextExtractor pulls text out of one specific document format.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Normalizer rewrites raw extracted text into cleaner pricelist lines.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) (string, error)
}

// Service dispatches documents to a format-specific extractor by file
// extension.
type Service struct {
	pdf        TextExtractor
	normalizer Normalizer
}

// NewService builds the extraction service from config. The AI normalizer is
// attached only when enabled and an API key is present.
func NewService(cfg config.ExtractConfig) *Service {
	s := &Service{pdf: NewPdfToText(cfg.PdfToTextPath)}
	if cfg.AINormalize && cfg.AnthropicKey != "" {
		s.normalizer = NewAINormalizer(cfg.AnthropicKey, cfg.AIModel)
	}
	return s
}

// WithPDF overrides the PDF extractor (for testing).
func (s *Service) WithPDF(pdf TextExtractor) *Service {
	s.pdf = pdf
	return s
}

// WithNormalizer overrides the AI normalizer (for testing).
func (s *Service) WithNormalizer(n Normalizer) *Service {
	s.normalizer = n
	return s
}

// Extract pulls text from the document. Extraction failures are reported in
// the result, never panicked or propagated, so a bad document degrades to an
// empty parse rather than a dead job.
func (s *Service) Extract(ctx context.Context, path string) Extraction {
	var (
		text   string
		method string
		pages  int
		err    error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		method = "pdftotext"
		text, err = s.pdf.ExtractText(ctx, path)
		// pdftotext separates pages with form feeds.
		if err == nil && text != "" {
			pages = strings.Count(text, "\f") + 1
		}
	case ".xlsx", ".xls":
		method = "xlsx"
		text, err = FlattenXLSX(path)
	default:
		method = "plain"
		var raw []byte
		raw, err = os.ReadFile(path)
		text = string(raw)
	}
	if err != nil {
		zap.L().Error("extract: extraction failed",
			zap.String("path", path),
			zap.String("method", method),
			zap.Error(err),
		)
		return Extraction{Method: method, Error: err.Error()}
	}

	if s.normalizer != nil && strings.TrimSpace(text) != "" {
		normalized, nerr := s.normalizer.Normalize(ctx, text)
		if nerr != nil {
			// Raw text is still usable; fall through with it.
			zap.L().Warn("extract: ai normalization failed, using raw text",
				zap.String("path", path),
				zap.Error(nerr),
			)
		} else {
			text = normalized
			method += "+ai"
		}
	}

	return Extraction{Success: true, Text: text, Method: method, Pages: pages}
}
