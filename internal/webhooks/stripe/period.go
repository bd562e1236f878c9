package stripewebhook

import (
	"time"

	"github.com/stripe/stripe-go/v84"
)

// RenewalTimestamp derives the entitlement end date from a subscription.
// Candidates are consulted in a fixed order and the first one set wins:
// ended_at, the first item's current_period_end, cancel_at, canceled_at.
// Returns nil when none is set.
func RenewalTimestamp(sub *stripe.Subscription) *time.Time {
	if sub == nil {
		return nil
	}
	for _, ts := range []int64{
		sub.EndedAt,
		firstItemPeriodEnd(sub),
		sub.CancelAt,
		sub.CanceledAt,
	} {
		if ts > 0 {
			t := time.Unix(ts, 0).UTC()
			return &t
		}
	}
	return nil
}

func firstItemPeriodEnd(sub *stripe.Subscription) int64 {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return 0
	}
	return sub.Items.Data[0].CurrentPeriodEnd
}

func firstItemPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return ""
	}
	if sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}
