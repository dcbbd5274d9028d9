// Package extract turns uploaded document bytes into plain text.
//
// PDFs are read with github.com/ledongthuc/pdf, HTML pages go through
// go-readability with a goquery body-text fallback, and plain text passes
// through. Results are raw; the pipeline applies
// textutil.NormalizeDocumentText once after extraction. Failures are tagged services.ErrExtraction.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"papercast/internal/logging"
	"papercast/internal/services"
	"papercast/internal/textutil"
)

// Kind identifies a supported document format.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindText Kind = "text"
)

// SupportedExtensions lists the upload extensions the extractor accepts.
var SupportedExtensions = []string{".pdf", ".html", ".htm", ".txt"}

// KindForFilename maps a filename extension to a Kind.
func KindForFilename(name string) (Kind, bool) {
	switch textutil.Extension(name) {
	case ".pdf":
		return KindPDF, true
	case ".html", ".htm":
		return KindHTML, true
	case ".txt":
		return KindText, true
	default:
		return "", false
	}
}

// Extractor reads documents into normalized text.
type Extractor struct {
	logger *slog.Logger
}

// New builds an Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.NewComponentLogger(logger, "extract")}
}

// Extract returns the document's raw text for data; callers normalize it. The format is chosen from the
// filename extension, with PDF magic bytes taking precedence.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", services.Wrap(services.ErrExtraction, "extracting", "read", "document is empty", nil)
	}
	kind, ok := KindForFilename(filename)
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		kind, ok = KindPDF, true
	}
	if !ok {
		return "", services.Wrap(services.ErrExtraction, "extracting", "detect", fmt.Sprintf("unsupported document type %q", textutil.Extension(filename)), nil)
	}
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrExtraction, "extracting", string(kind), "canceled", err)
	}

	var (
		raw string
		err error
	)
	switch kind {
	case KindPDF:
		raw, err = pdfText(data)
	case KindHTML:
		raw, err = htmlText(data)
	case KindText:
		raw, err = plainText(data)
	}
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extracting", string(kind), "parse document", err)
	}

	if strings.TrimSpace(raw) == "" {
		return "", services.Wrap(services.ErrExtraction, "extracting", string(kind), "no extractable text", nil)
	}
	logging.WithContext(ctx, e.logger).Debug("document text extracted",
		logging.String("kind", string(kind)),
		logging.Int("bytes", len(data)),
		logging.Int("chars", utf8.RuneCountInString(raw)),
	)
	return raw, nil
}

// pdfText reads every page's plain text. The pdf package panics on some
// malformed inputs, so panics are converted into errors.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	reader, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func htmlText(data []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, title) {
				return title + "\n" + text, nil
			}
			return text, nil
		}
	}

	doc, qerr := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if qerr != nil {
		if err != nil {
			return "", fmt.Errorf("readability: %v; goquery: %w", err, qerr)
		}
		return "", qerr
	}
	doc.Find("script, style, noscript, nav, footer").Remove()
	return doc.Find("body").Text(), nil
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text document is not valid UTF-8")
	}
	return string(data), nil
}
