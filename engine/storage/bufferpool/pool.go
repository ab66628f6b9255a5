package bufferpool

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xmysql-server/engine/errs"
	"github.com/zhukovaskychina/xmysql-server/logger"
)

const (
	MinCapacity = 10
	MaxCapacity = 1000
)

type Kind int

const (
	KindLRU Kind = iota
	KindFIFO
	KindAdaptive
)

// Pool is the buffer pool facade: it owns the replacement strategy and
// adds dirty-flag bookkeeping and hit/miss/eviction metrics on top.
type Pool struct {
	mu       sync.Mutex
	strategy Strategy

	hits, misses, evictions, writes uint64
}

func New(capacity int, kind Kind) (*Pool, error) {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return nil, errors.Annotatef(errs.ErrInvalidCapacity, "capacity %d", capacity)
	}

	var s Strategy
	switch kind {
	case KindLRU:
		s = newLRU(capacity)
	case KindFIFO:
		s = newFIFO(capacity)
	case KindAdaptive:
		ad := newAdaptive(capacity)
		ad.onSwitch = func(from, to string) {
			logger.Infof("bufferpool: adaptive strategy switched %s -> %s", from, to)
		}
		s = ad
	default:
		s = newLRU(capacity)
	}
	return &Pool{strategy: s}, nil
}

// Get returns the cached frame for pageID, promoting it per the
// active strategy's semantics.
func (p *Pool) Get(pageID uint64) (*Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.strategy.Get(pageID)
	if ok {
		p.hits++
		f.LastAccess = time.Now()
	} else {
		p.misses++
	}
	return f, ok
}

// Put inserts or updates a cached page. If the page is already
// present, the dirty flag is OR'd in rather than overwritten.
func (p *Pool) Put(pageID uint64, data []byte, dirty bool) *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.strategy.Get(pageID); ok {
		existing.Data = data
		existing.Dirty = existing.Dirty || dirty
		existing.LastAccess = time.Now()
		p.strategy.Put(pageID, existing)
		return existing
	}

	f := &Frame{PageID: pageID, Data: data, Dirty: dirty, LastAccess: time.Now()}
	victim, evicted := p.strategy.Put(pageID, f)
	if evicted {
		p.evictions++
		_ = victim
	}
	p.writes++
	return f
}

func (p *Pool) MarkDirty(pageID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.strategy.Get(pageID)
	if !ok {
		return errors.Annotatef(errs.ErrEntryNotPresent, "page %d", pageID)
	}
	f.Dirty = true
	return nil
}

func (p *Pool) ClearDirtyFlag(pageID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.strategy.Get(pageID)
	if !ok {
		return errors.Annotatef(errs.ErrEntryNotPresent, "page %d", pageID)
	}
	f.Dirty = false
	return nil
}

// Remove evicts pageID unconditionally, returning its bytes and dirty
// flag if it was present.
func (p *Pool) Remove(pageID uint64) (data []byte, dirty bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, found := p.strategy.Remove(pageID)
	if !found {
		return nil, false, false
	}
	return f.Data, f.Dirty, true
}

// DirtyPages returns a snapshot of every currently-dirty page.
func (p *Pool) DirtyPages() map[uint64][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[uint64][]byte{}
	for _, f := range p.strategy.All() {
		if f.Dirty {
			out[f.PageID] = f.Data
		}
	}
	return out
}

// FlushAll returns every dirty entry and clears all dirty flags.
func (p *Pool) FlushAll() map[uint64][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[uint64][]byte{}
	for _, f := range p.strategy.All() {
		if f.Dirty {
			out[f.PageID] = f.Data
			f.Dirty = false
		}
	}
	return out
}

func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategy.Clear()
}

func (p *Pool) Contains(pageID uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.strategy.Contains(pageID)
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.strategy.Len()
}

type Stats struct {
	Hits, Misses, Evictions, Writes uint64
	HitRate                          float64
	Size                              int
}

func (p *Pool) Statistics() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.hits + p.misses
	var rate float64
	if total > 0 {
		rate = float64(p.hits) / float64(total)
	}
	return Stats{
		Hits: p.hits, Misses: p.misses, Evictions: p.evictions, Writes: p.writes,
		HitRate: rate, Size: p.strategy.Len(),
	}
}
