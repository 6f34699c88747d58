package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPriority(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := DefaultOrderPriority(epoch)

	tests := []struct {
		name  string
		order Order
		want  float64
	}{
		{"standard at epoch", Order{SubmittedAt: epoch}, 0},
		{"standard later", Order{SubmittedAt: epoch.Add(90 * time.Second)}, 90},
		{"premium", Order{Tier: TierPremium, SubmittedAt: epoch}, -120},
		{"urgent", Order{Urgent: true, SubmittedAt: epoch}, -300},
		{"size capped", Order{Items: 50, SubmittedAt: epoch}, -50},
		{"size", Order{Items: 3, SubmittedAt: epoch}, -15},
		{"tier clamped", Order{Tier: Tier(9), SubmittedAt: epoch}, -120},
		{"negative items ignored", Order{Items: -4, SubmittedAt: epoch}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, p.Priority(tt.order), 1e-9)
		})
	}
}

func TestOrderPriority_BoostIsBounded(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := DefaultOrderPriority(epoch)
	require.Equal(t, 470.0, p.MaxBoost())

	old := Order{SubmittedAt: epoch}
	best := Order{Tier: TierPremium, Urgent: true, Items: 99, SubmittedAt: epoch.Add(time.Duration(p.MaxBoost()+1) * time.Second)}
	assert.Less(t, p.Priority(old), p.Priority(best), "an old order must not be overtaken past MaxBoost")
}

func TestOrderPriority_QueueOrder(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := DefaultOrderPriority(epoch)
	q := newQueue(t, 10)

	require.NoError(t, q.Push("late-standard", p.Priority(Order{SubmittedAt: epoch.Add(10 * time.Second)})))
	require.NoError(t, q.Push("late-urgent", p.Priority(Order{Urgent: true, SubmittedAt: epoch.Add(20 * time.Second)})))
	require.NoError(t, q.Push("early", p.Priority(Order{SubmittedAt: epoch})))

	var got []string
	for _, e := range popAll(q) {
		got = append(got, e.ID)
	}
	assert.Equal(t, []string{"late-urgent", "early", "late-standard"}, got)
}
