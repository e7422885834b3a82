package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

const System = "Answer using provided context only. If the context does not contain the answer, say so directly."

// Context renders the evidence of every invoked domain, highest priority first.
func Context(aggregated domain.AggregatedContext) string {
	var b strings.Builder
	for _, d := range domain.AllDomains() {
		outcome, ok := aggregated.Debug[d]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "[%s] retrieval=%s confidence=%.2f\n", d, outcome.Type, outcome.Confidence)
		if outcome.Error != "" {
			fmt.Fprintf(&b, "note: %s\n", outcome.Error)
		}
		for _, ev := range outcome.Results {
			raw, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			b.Write(raw)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "(no records matched)\n"
	}
	return b.String()
}

// User builds the user turn for chat-style models.
func User(question string, aggregated domain.AggregatedContext) string {
	return fmt.Sprintf("Context:\n%s\nQuestion: %s", Context(aggregated), question)
}

// Completion builds a single prompt for completion-style models.
func Completion(question string, aggregated domain.AggregatedContext) string {
	return System + "\n\n" + User(question, aggregated)
}
