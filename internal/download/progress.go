package download

import "sync"

// Progress tracks how many instances of a series have finished
// downloading. It reports indeterminate whenever the series' total is
// below three instances, however many of them are already done.
type Progress struct {
	mu     sync.Mutex
	done   int
	total  int
	errors int
}

func NewProgress(total int) *Progress {
	return &Progress{total: total}
}

func (p *Progress) MarkDone() {
	p.mu.Lock()
	p.done++
	p.mu.Unlock()
}

func (p *Progress) MarkError() {
	p.mu.Lock()
	p.done++
	p.errors++
	p.mu.Unlock()
}

// Snapshot is a point-in-time read of progress state.
type Snapshot struct {
	Done          int
	Total         int
	Errors        int
	Indeterminate bool
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Done:          p.done,
		Total:         p.total,
		Errors:        p.errors,
		Indeterminate: p.total < 3,
	}
}
