package processing

import (
	"context"
	"time"

	"facemorph/event"
	"facemorph/storage"
)

var log = event.Log

// Reaper deletes stored files once they are older than TTL. Files pinned by
// a running request are left alone until a later pass.
type Reaper struct {
	Storage  storage.StorageAPI
	Pins     *storage.Pins
	TTL      time.Duration
	Interval time.Duration
	now      func() time.Time
}

func NewReaper(s storage.StorageAPI, pins *storage.Pins, ttl, interval time.Duration) *Reaper {
	return &Reaper{Storage: s, Pins: pins, TTL: ttl, Interval: interval, now: time.Now}
}

// RunOnce makes a single pass and returns the number of deleted files
func (r *Reaper) RunOnce() int {
	files, err := r.Storage.List()
	if err != nil {
		log.Errorf("reaper: list: %s", err)
		return 0
	}
	deadline := r.now().Add(-r.TTL)
	deleted := 0
	for _, file := range files {
		if !file.ModTime.Before(deadline) || r.Pins.Pinned(file.Name) {
			continue
		}
		if err := r.Storage.Delete(file.Name); err != nil {
			log.Warnf("reaper: delete %s: %s", file.Name, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Infof("reaper: deleted %d of %d files", deleted, len(files))
	}
	return deleted
}

// Start runs a pass every Interval until ctx is done
func (r *Reaper) Start(ctx context.Context) {
	log.Infof("reaper: every %s, files older than %s", r.Interval, r.TTL)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.Interval):
		}
		r.RunOnce()
	}
}
