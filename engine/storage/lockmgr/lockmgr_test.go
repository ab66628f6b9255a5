package lockmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSharedLocksAreCompatible(t *testing.T) {
	m := New(50 * time.Millisecond)
	assert.True(t, m.Acquire(1, 100, Shared))
	assert.True(t, m.Acquire(2, 100, Shared))
}

func TestExclusiveLockBlocksOthersUntilTimeout(t *testing.T) {
	m := New(30 * time.Millisecond)
	assert.True(t, m.Acquire(1, 100, Exclusive))
	assert.False(t, m.Acquire(2, 100, Exclusive))
}

func TestSelfCompatibleUpgradeFromSharedToExclusive(t *testing.T) {
	m := New(50 * time.Millisecond)
	assert.True(t, m.Acquire(1, 100, Shared))
	assert.True(t, m.Acquire(1, 100, Exclusive))
}

func TestReleaseAllFreesLocksForOtherWaiters(t *testing.T) {
	m := New(200 * time.Millisecond)
	assert.True(t, m.Acquire(1, 100, Exclusive))

	done := make(chan bool, 1)
	go func() {
		done <- m.Acquire(2, 100, Exclusive)
	}()

	time.Sleep(10 * time.Millisecond)
	m.ReleaseAll(1)

	assert.True(t, <-done)
}

func TestStatisticsCountsGrantsAndTimeouts(t *testing.T) {
	m := New(20 * time.Millisecond)
	m.Acquire(1, 1, Exclusive)
	m.Acquire(2, 1, Exclusive) // times out

	stats := m.Statistics()
	assert.GreaterOrEqual(t, stats.LocksGranted, uint64(1))
	assert.GreaterOrEqual(t, stats.LocksTimeout, uint64(1))
}
