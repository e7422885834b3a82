package plaintext

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// Decode turns a UTF-8 text document into a single record holding its text.
func Decode(raw []byte) ([]domain.SourceRecord, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("plaintext: content is not valid utf-8")
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return []domain.SourceRecord{{"text": text}}, nil
}
