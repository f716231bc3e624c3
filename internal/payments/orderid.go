package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderID returns a merchant order id of the form PREFIX_<unix>_<uuid8>.
func NewOrderID(prefix string, now time.Time) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "TXN"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.Unix(), uuid.NewString()[:8])
}

// OrderPrefix is the order id prefix used for each payment kind.
func OrderPrefix(kind Kind) string {
	switch kind {
	case KindSubscription:
		return "SUB"
	case KindRent:
		return "RENT"
	default:
		return "TXN"
	}
}
