package download

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor periodically sweeps orphaned ".part" files out of a tmp
// root: anything a crashed or cancelled job left behind older than
// MaxAge. Grounded on the idle-connection-cleanup ticker loop the
// DIMSE connection pool used to run.
type Janitor struct {
	Dir      string
	MaxAge   time.Duration
	Interval time.Duration
}

// Run blocks, sweeping on every tick, until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-j.MaxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if filepath.Ext(e.Name()) != ".part" {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.Dir, e.Name())
		if err := os.Remove(path); err != nil {
			log.Warn().Str("path", path).Err(err).Msg("janitor failed to remove orphaned temp file")
		}
	}
}
