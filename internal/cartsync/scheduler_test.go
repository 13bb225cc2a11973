package cartsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/catering-cart/internal/testutil"
)

func TestScheduler_ReplacesPendingTimer(t *testing.T) {
	clock := testutil.NewFakeClock()
	s := NewScheduler(clock, time.Second)
	fired := 0

	s.Schedule(func() { fired++ })
	clock.Advance(900 * time.Millisecond)
	s.Schedule(func() { fired += 10 })

	assert.Equal(t, 1, clock.Pending(), "previous timer must be stopped")

	clock.Advance(900 * time.Millisecond)
	assert.Equal(t, 0, fired)
	assert.True(t, s.Pending())

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 10, fired)
	assert.False(t, s.Pending())
}

func TestScheduler_Cancel(t *testing.T) {
	clock := testutil.NewFakeClock()
	s := NewScheduler(clock, time.Second)
	fired := false

	assert.False(t, s.Cancel(), "nothing pending")

	s.Schedule(func() { fired = true })
	assert.True(t, s.Cancel())
	clock.Advance(time.Hour)

	assert.False(t, fired)
	assert.False(t, s.Pending())
}

func TestScheduler_Defaults(t *testing.T) {
	s := NewScheduler(nil, 0)

	assert.Equal(t, DefaultQuietPeriod, s.Delay())
	assert.False(t, s.Pending())
}
