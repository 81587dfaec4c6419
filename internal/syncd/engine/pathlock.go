package engine

import "sync"

// PathLocks serializes work per relative path. An upload and a remote
// apply never touch the same file at once, and a second upload for a
// path already in flight is skipped rather than queued: the next scan
// or sync round picks the file up again.
type PathLocks struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewPathLocks() *PathLocks {
	return &PathLocks{busy: make(map[string]struct{})}
}

// TryAcquire claims a path, returning false when it is already held.
func (p *PathLocks) TryAcquire(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, held := p.busy[path]; held {
		return false
	}
	p.busy[path] = struct{}{}
	return true
}

// Release frees a path claimed by TryAcquire.
func (p *PathLocks) Release(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.busy, path)
}
