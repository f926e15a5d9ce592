package shopify

import (
	"fmt"

	"github.com/de-tools/commerce-atlas/pkg/models/domain"
)

// ExternalQueryError reports a query the platform rejected. Detail holds the
// platform's raw response so it can be logged as is.
type ExternalQueryError struct {
	Kind   domain.QueryKind
	Status int
	Detail string
}

func (e *ExternalQueryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("shopify query %s failed with status %d: %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("shopify query %s failed: %s", e.Kind, e.Detail)
}
