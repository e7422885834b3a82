package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// renderRecordText builds the text that gets embedded for a record.
func renderRecordText(d domain.Domain, rec domain.SourceRecord) string {
	switch d {
	case domain.DomainOrders:
		return renderOrder(rec)
	case domain.DomainProducts:
		return renderProduct(rec)
	case domain.DomainPolicies:
		return renderPolicy(rec)
	default:
		return ""
	}
}

func renderOrder(rec domain.SourceRecord) string {
	status := field(rec, "order_status")
	if status == "" {
		status = field(rec, "status")
	}
	date := field(rec, "order_date")
	if date == "" {
		date = field(rec, "created_at")
	}
	return fmt.Sprintf(
		"Order %s placed on %s. Order status: %s. Payment status: %s.",
		field(rec, "order_id"), date, status, field(rec, "payment_status"),
	)
}

func renderProduct(rec domain.SourceRecord) string {
	warranty := "Warranty information is not available."
	if w := field(rec, "warranty"); w != "" {
		warranty = fmt.Sprintf("It comes with a warranty of %s.", w)
	}
	return strings.TrimSpace(fmt.Sprintf(
		"Product %s (ID %s) belongs to the %s category. It is priced at %s INR. %s %s",
		field(rec, "name"), field(rec, "product_id"), field(rec, "category"),
		field(rec, "price"), field(rec, "description"), warranty,
	))
}

func renderPolicy(rec domain.SourceRecord) string {
	parts := make([]string, 0, 3)
	if title := field(rec, "title"); title != "" {
		parts = append(parts, title+".")
	}
	for _, key := range []string{"content", "text"} {
		if body := field(rec, key); body != "" {
			parts = append(parts, body)
			break
		}
	}
	return strings.Join(parts, " ")
}

func field(rec domain.SourceRecord, key string) string {
	return strings.TrimSpace(payloadString(rec, key))
}
