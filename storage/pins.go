package storage

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Pins counts the requests using a file, pinned files are never reaped
type Pins struct {
	counts cmap.ConcurrentMap[string, int]
}

func NewPins() *Pins {
	return &Pins{counts: cmap.New[int]()}
}

func (p *Pins) Pin(names ...string) {
	for _, name := range names {
		p.counts.Upsert(name, 1, func(exists bool, current, _ int) int {
			if exists {
				return current + 1
			}
			return 1
		})
	}
}

func (p *Pins) Unpin(names ...string) {
	for _, name := range names {
		p.counts.Upsert(name, 0, func(exists bool, current, _ int) int {
			if exists {
				return current - 1
			}
			return 0
		})
		p.counts.RemoveCb(name, func(_ string, current int, exists bool) bool {
			return exists && current <= 0
		})
	}
}

func (p *Pins) Pinned(name string) bool {
	return p.counts.Has(name)
}
