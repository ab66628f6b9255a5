package bufferpool

import "time"

const (
	AnalysisInterval   = 100
	MinSwitchInterval  = 30 * time.Second
	DecisionThreshold  = 3
	RepeatThreshold    = 0.6
	SequentialThreshold = 0.7
)

// patternAnalyzer tracks a sliding window of page accesses to
// estimate how repeat-heavy vs. sequential the workload looks.
type patternAnalyzer struct {
	history        []uint64
	lastPageID     uint64
	haveLast       bool
	repeatCount    int
	sequentialCount int
	totalAccesses  int
}

func newPatternAnalyzer() *patternAnalyzer {
	return &patternAnalyzer{history: make([]uint64, 0, AnalysisInterval)}
}

func (a *patternAnalyzer) recordAccess(pageID uint64) {
	a.totalAccesses++

	for _, h := range a.history {
		if h == pageID {
			a.repeatCount++
			break
		}
	}
	if a.haveLast && pageID == a.lastPageID+1 {
		a.sequentialCount++
	}

	a.history = append(a.history, pageID)
	if len(a.history) > AnalysisInterval {
		a.history = a.history[len(a.history)-AnalysisInterval:]
	}
	a.lastPageID = pageID
	a.haveLast = true
}

func (a *patternAnalyzer) stats() (repeatRate, sequentialRate float64) {
	if a.totalAccesses == 0 {
		return 0, 0
	}
	return float64(a.repeatCount) / float64(a.totalAccesses),
		float64(a.sequentialCount) / float64(a.totalAccesses)
}

// resetCounters clears the running rate counters but keeps history so
// repeat detection stays continuous across analysis windows.
func (a *patternAnalyzer) resetCounters() {
	a.repeatCount = 0
	a.sequentialCount = 0
	a.totalAccesses = 0
}

// adaptiveStrategy switches between an LRU and a FIFO strategy based
// on observed access patterns, per spec.md §4.2.
type adaptiveStrategy struct {
	capacity int
	lru      *lruStrategy
	fifo     *fifoStrategy
	current  Strategy
	name     string // "lru" or "fifo"

	analyzer          *patternAnalyzer
	lastSwitch        time.Time
	everSwitched      bool
	consecutive       []string
	onSwitch          func(from, to string)
}

func newAdaptive(capacity int) *adaptiveStrategy {
	lru := newLRU(capacity)
	return &adaptiveStrategy{
		capacity: capacity,
		lru:      lru,
		fifo:     newFIFO(capacity),
		current:  lru,
		name:     "lru",
		analyzer: newPatternAnalyzer(),
	}
}

func (s *adaptiveStrategy) Get(pageID uint64) (*Frame, bool) {
	s.analyzer.recordAccess(pageID)
	s.maybeAnalyze()
	return s.current.Get(pageID)
}

func (s *adaptiveStrategy) Put(pageID uint64, f *Frame) (*Frame, bool) {
	s.analyzer.recordAccess(pageID)
	s.maybeAnalyze()
	return s.current.Put(pageID, f)
}

func (s *adaptiveStrategy) Remove(pageID uint64) (*Frame, bool) { return s.current.Remove(pageID) }
func (s *adaptiveStrategy) Clear() {
	s.current.Clear()
	s.analyzer = newPatternAnalyzer()
}
func (s *adaptiveStrategy) Contains(pageID uint64) bool { return s.current.Contains(pageID) }
func (s *adaptiveStrategy) Len() int                    { return s.current.Len() }
func (s *adaptiveStrategy) All() []*Frame               { return s.current.All() }

func (s *adaptiveStrategy) maybeAnalyze() {
	if s.analyzer.totalAccesses == 0 || s.analyzer.totalAccesses%AnalysisInterval != 0 {
		return
	}
	repeatRate, sequentialRate := s.analyzer.stats()
	recommendation := s.decide(repeatRate, sequentialRate)

	s.consecutive = append(s.consecutive, recommendation)
	if len(s.consecutive) > DecisionThreshold {
		s.consecutive = s.consecutive[len(s.consecutive)-DecisionThreshold:]
	}

	if s.shouldSwitch(recommendation) {
		s.switchTo(recommendation)
	}
	s.analyzer.resetCounters()
}

func (s *adaptiveStrategy) decide(repeatRate, sequentialRate float64) string {
	if repeatRate > RepeatThreshold {
		return "lru"
	}
	if sequentialRate > SequentialThreshold {
		return "fifo"
	}
	return s.name
}

func (s *adaptiveStrategy) shouldSwitch(recommendation string) bool {
	if recommendation == s.name {
		return false
	}
	if s.everSwitched && time.Since(s.lastSwitch) < MinSwitchInterval {
		return false
	}
	if len(s.consecutive) < DecisionThreshold {
		return false
	}
	for _, d := range s.consecutive {
		if d != recommendation {
			return false
		}
	}
	return true
}

func (s *adaptiveStrategy) switchTo(name string) {
	var fresh Strategy
	switch name {
	case "lru":
		fresh = newLRU(s.capacity)
	case "fifo":
		fresh = newFIFO(s.capacity)
	default:
		return
	}
	for _, f := range s.current.All() {
		fresh.Put(f.PageID, f)
	}

	from := s.name
	s.current = fresh
	s.name = name
	s.lastSwitch = time.Now()
	s.everSwitched = true
	if s.onSwitch != nil {
		s.onSwitch(from, name)
	}
}
