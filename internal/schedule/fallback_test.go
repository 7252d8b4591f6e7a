package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackSlotsShape(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	slots := FallbackSlots(date, 30)
	require.Len(t, slots, 16) // 09:00 .. 16:30

	assert.Equal(t, mustTime(t, "09:00"), slots[0].Start)
	assert.Equal(t, mustTime(t, "16:30"), slots[len(slots)-1].Start)

	for _, s := range slots {
		assert.True(t, s.Available, "fallback slot %s must be offered", s.Start)
		assert.Equal(t, s.Start.Add(30), s.End)
		wantPeak := s.Start.Hour() == 12 || s.Start.Hour() == 16
		assert.Equal(t, wantPeak, s.IsPeak, "slot %s", s.Start)
	}
}

func TestFallbackSlotsDeterministic(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	first := FallbackSlots(date, 45)
	second := FallbackSlots(date, 45)
	assert.Equal(t, first, second)
}

func TestFallbackSlotsRespectServiceFit(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	slots := FallbackSlots(date, 120)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.LessOrEqual(t, s.End, mustTime(t, "17:00"))
	}
}
