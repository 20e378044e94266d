// Package document loads bid documents (PDF, spreadsheets, CSV) as plain
// text and lists them from local folders or FTP servers.
package document

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bid-cli/internal/config"
)

// Kind identifies a document format.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindXLSX Kind = "xlsx"
	KindCSV  Kind = "csv"
)

// ErrUnsupported is returned for files whose extension has no loader.
var ErrUnsupported = eris.New("document: unsupported file type")

// Document is a loaded bid file.
type Document struct {
	Name string
	Kind Kind
	Text string
}

// KindOf returns the document kind for a file name by extension.
func KindOf(name string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, true
	case ".xlsx", ".xls":
		return KindXLSX, true
	case ".csv":
		return KindCSV, true
	default:
		return "", false
	}
}

// Supported reports whether a file participates in extraction.
func Supported(name string) bool {
	_, ok := KindOf(name)
	return ok
}

// TextExtractor extracts text content from PDF files.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// Loader turns files on disk into Documents.
type Loader struct {
	pdf TextExtractor
}

// NewLoader creates a Loader that reads PDFs with pdftotext.
func NewLoader(cfg config.OCRConfig) *Loader {
	return &Loader{pdf: NewPdfToText(cfg.PdfToTextPath)}
}

// NewLoaderWith creates a Loader with a custom PDF text extractor.
func NewLoaderWith(pdf TextExtractor) *Loader {
	return &Loader{pdf: pdf}
}

// Load reads the file at path. The document name is the file's base name.
func (l *Loader) Load(ctx context.Context, path string) (Document, error) {
	name := filepath.Base(path)
	kind, ok := KindOf(name)
	if !ok {
		return Document{}, eris.Wrapf(ErrUnsupported, "load %s", name)
	}

	var (
		text string
		err  error
	)
	switch kind {
	case KindPDF:
		text, err = l.pdf.ExtractText(ctx, path)
	case KindXLSX:
		text, err = ReadSpreadsheet(path)
	case KindCSV:
		text, err = ReadCSV(ctx, path)
	}
	if err != nil {
		return Document{}, eris.Wrapf(err, "document: load %s", name)
	}

	return Document{Name: name, Kind: kind, Text: text}, nil
}
