package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// Decode extracts the plain text of a PDF into a single record.
func Decode(raw []byte) ([]domain.SourceRecord, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	body, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.Join(strings.Fields(string(body)), " ")
	if text == "" {
		return nil, nil
	}
	return []domain.SourceRecord{{"text": text}}, nil
}
