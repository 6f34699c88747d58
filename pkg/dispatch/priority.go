package dispatch

import "time"

// Tier is a customer account tier.
type Tier int

const (
	TierStandard Tier = iota
	TierPlus
	TierPremium
)

// Order carries the inputs of the default priority policy.
type Order struct {
	Tier        Tier
	Items       int
	Urgent      bool
	SubmittedAt time.Time
}

// OrderPriority turns orders into queue priorities. The base is the
// submission time in seconds since Epoch, so priorities grow with time;
// tier, urgency and size subtract bounded head starts. An order can
// therefore be overtaken only by orders submitted at most MaxBoost seconds
// after it, and every order is eventually served.
type OrderPriority struct {
	Epoch time.Time
	// TierBoost is the head start per tier step, in seconds.
	TierBoost float64
	// UrgentBoost is the head start for urgent orders, in seconds.
	UrgentBoost float64
	// SizeBoost is the head start per item, capped at MaxSizeItems items.
	SizeBoost    float64
	MaxSizeItems int
}

// DefaultOrderPriority returns the policy used by the order service:
// a premium customer is worth two minutes, urgency five, each item (up to
// ten) five seconds.
func DefaultOrderPriority(epoch time.Time) OrderPriority {
	return OrderPriority{
		Epoch:        epoch,
		TierBoost:    60,
		UrgentBoost:  300,
		SizeBoost:    5,
		MaxSizeItems: 10,
	}
}

// MaxBoost is the largest head start any order can get.
func (p OrderPriority) MaxBoost() float64 {
	return float64(TierPremium)*p.TierBoost + p.UrgentBoost + float64(p.MaxSizeItems)*p.SizeBoost
}

// Priority computes the queue priority for o. Lower pops first.
func (p OrderPriority) Priority(o Order) float64 {
	base := o.SubmittedAt.Sub(p.Epoch).Seconds()

	tier := o.Tier
	if tier < TierStandard {
		tier = TierStandard
	}
	if tier > TierPremium {
		tier = TierPremium
	}
	boost := float64(tier) * p.TierBoost
	if o.Urgent {
		boost += p.UrgentBoost
	}
	items := o.Items
	if items > p.MaxSizeItems {
		items = p.MaxSizeItems
	}
	if items > 0 {
		boost += float64(items) * p.SizeBoost
	}
	return base - boost
}
