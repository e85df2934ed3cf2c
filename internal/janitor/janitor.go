// Package janitor runs the periodic housekeeping: pending-table sweeps,
// temp-file garbage collection, store flushes and plan-expiry scans.
package janitor

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/pending"
	"github.com/wapuda/virex/internal/store"
)

type Janitor struct {
	cron    *cron.Cron
	store   *store.Store
	pending *pending.Table
	tempDir string
	log     zerolog.Logger

	// NotifyExpired and NotifyExpiring are hooks into the bot layer; nil
	// hooks turn the corresponding scan into a no-op. NotifyExpiring
	// reports whether the warning was delivered; skipped users stay
	// unlatched so the next scan reaches them.
	NotifyExpired  func(userID int64)
	NotifyExpiring func(u domain.UserRecord) bool
}

func New(st *store.Store, tbl *pending.Table, tempDir string, log zerolog.Logger) *Janitor {
	return &Janitor{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
			cron.Recover(cron.DiscardLogger),
		)),
		store:   st,
		pending: tbl,
		tempDir: tempDir,
		log:     log,
	}
}

func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("@every "+config.PendingSweep.String(), j.sweep); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("@every 1m", j.flush); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("@every "+config.ExpiryScanEvery.String(), j.expiryScan); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.flush()
}

// sweep drops expired pending entries and stale temp files.
func (j *Janitor) sweep() {
	if n := j.pending.Sweep(); n > 0 {
		j.log.Info().Int("removed", n).Msg("pending sweep")
	}
	if n := j.collectTemp(config.TempFileMaxAge); n > 0 {
		j.log.Info().Int("removed", n).Msg("temp sweep")
	}
}

func (j *Janitor) flush() {
	if err := j.store.SaveIfDirty(); err != nil {
		j.log.Error().Err(err).Msg("store flush")
	}
}

// expiryScan tells users whose paid plan lapsed (once) and warns those
// whose plan runs out soon.
func (j *Janitor) expiryScan() {
	if j.NotifyExpired != nil {
		for _, id := range j.store.ExpiredUnnotified() {
			j.NotifyExpired(id)
		}
	}
	if j.NotifyExpiring != nil {
		for _, u := range j.store.ExpiringSoon(config.ExpiryNotifyAhead) {
			if j.NotifyExpiring(u) {
				j.store.MarkExpiryWarned(u.UserID)
			}
		}
	}
}

// collectTemp deletes work files older than maxAge.
func (j *Janitor) collectTemp(maxAge time.Duration) int {
	entries, err := os.ReadDir(j.tempDir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "virex_") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(j.tempDir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}
