package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/extractor/jsonrecords"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/extractor/spreadsheet"
)

const (
	defaultMaxSourceBytes = 64 << 20
	xlsxMimeType          = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Decoder turns raw file bytes into records.
type Decoder func(raw []byte) ([]domain.SourceRecord, error)

// Extractor loads a stored source file and decodes it by file extension,
// falling back to the declared MIME type.
type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
	byExt    map[string]Decoder
	byMime   map[string]Decoder
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{
		storage:  storage,
		maxBytes: defaultMaxSourceBytes,
		byExt: map[string]Decoder{
			".json": jsonrecords.Decode,
			".xlsx": spreadsheet.DecodeXLSX,
			".csv":  spreadsheet.DecodeCSV,
			".pdf":  pdftext.Decode,
			".txt":  plaintext.Decode,
			".md":   plaintext.Decode,
		},
		byMime: map[string]Decoder{
			"application/json": jsonrecords.Decode,
			xlsxMimeType:       spreadsheet.DecodeXLSX,
			"text/csv":         spreadsheet.DecodeCSV,
			"application/pdf":  pdftext.Decode,
			"text/plain":       plaintext.Decode,
			"text/markdown":    plaintext.Decode,
		},
	}
}

// Supports reports whether a file with this name and type can be decoded.
func (e *Extractor) Supports(filename, mimeType string) bool {
	_, ok := e.decoderFor(filename, mimeType)
	return ok
}

func (e *Extractor) Extract(ctx context.Context, src *domain.SourceFile) ([]domain.SourceRecord, error) {
	decode, ok := e.decoderFor(src.Filename, src.MimeType)
	if !ok {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"extract records",
			fmt.Errorf("unsupported file type: %s (%s)", src.Filename, src.MimeType),
		)
	}

	reader, err := e.storage.Open(ctx, src.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract records", fmt.Errorf("source file exceeds %d bytes", e.maxBytes))
	}

	records, err := decode(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract records", err)
	}
	return records, nil
}

func (e *Extractor) decoderFor(filename, mimeType string) (Decoder, bool) {
	if decode, ok := e.byExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return decode, true
	}
	mime := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	decode, ok := e.byMime[mime]
	return decode, ok
}
