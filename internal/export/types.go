// Package export renders pages to downloadable documents.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	OwnerID string
	PageID  string
	Format  Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates the requested format is not available
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrPDFDependencyMissing indicates chromium is not installed
	ErrPDFDependencyMissing = errors.New("pdf export unavailable")
)
