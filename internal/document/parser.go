package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Parser extracts plain text from a document file.
type Parser interface {
	// Parse extracts the text content from a file on disk.
	Parse(filePath string) (string, error)

	// ParseReader extracts the text content from a reader. The
	// filename determines the document format.
	ParseReader(r io.Reader, filename string) (string, error)
}

// FileFormat identifies a supported document format.
type FileFormat string

const (
	FormatPDF       FileFormat = "pdf"
	FormatMarkdown  FileFormat = "markdown"
	FormatPlainText FileFormat = "plaintext"
	FormatUnknown   FileFormat = "unknown"
)

// ErrUnsupportedFormat is returned for file types without a parser.
var ErrUnsupportedFormat = errors.New("unsupported document type")

// ParserFactory returns the parser matching the file's extension.
func ParserFactory(filePath string) (Parser, error) {
	switch detectFileFormat(filePath) {
	case FormatPDF:
		return NewPDFParser(), nil
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatPlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// detectFileFormat maps a file extension to its format.
func detectFileFormat(filePath string) FileFormat {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		return FormatPDF
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt":
		return FormatPlainText
	default:
		return FormatUnknown
	}
}
