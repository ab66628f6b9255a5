package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUvsFIFOEvictionDiffer(t *testing.T) {
	lru, err := New(3, KindLRU)
	require.NoError(t, err)
	fifo, err := New(3, KindFIFO)
	require.NoError(t, err)

	access := []uint64{1, 2, 3}
	for _, id := range access {
		lru.Put(id, []byte{byte(id)}, false)
		fifo.Put(id, []byte{byte(id)}, false)
	}
	// touch 1 again before inserting 4
	lru.Get(1)
	fifo.Get(1)
	lru.Put(4, []byte{4}, false)
	fifo.Put(4, []byte{4}, false)

	assert.False(t, lru.Contains(2), "LRU should evict least-recently-used page 2")
	assert.True(t, lru.Contains(1), "recently touched page 1 should survive LRU eviction")

	assert.False(t, fifo.Contains(1), "FIFO should evict the oldest-inserted page 1 regardless of access")
	assert.True(t, fifo.Contains(2), "FIFO retains later-inserted pages ahead of insertion order")
}

func TestPoolDirtyFlagSticky(t *testing.T) {
	p, err := New(10, KindLRU)
	require.NoError(t, err)

	p.Put(1, []byte("a"), true)
	p.Put(1, []byte("b"), false)

	dirty := p.DirtyPages()
	_, ok := dirty[1]
	assert.True(t, ok, "dirty flag must stay set once marked, merged via OR on subsequent put")
}

func TestAdaptiveSwitchRequiresConsecutiveAgreement(t *testing.T) {
	p, err := New(10, KindAdaptive)
	require.NoError(t, err)
	ad := p.strategy.(*adaptiveStrategy)

	assert.Equal(t, "lru", ad.name)
	// A single analysis window recommending fifo should not switch yet;
	// DecisionThreshold consecutive agreements are required.
	ad.consecutive = []string{"fifo"}
	assert.False(t, ad.shouldSwitch("fifo"))
}
