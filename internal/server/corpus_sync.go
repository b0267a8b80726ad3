package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/similivec/similivec/internal/config"
	"github.com/similivec/similivec/pkg/rag"
	"github.com/similivec/similivec/pkg/search"
)

// CorpusSyncer keeps the index in step with a corpus directory. It ingests
// the whole directory once, then follows file changes reported by the
// watcher. Files whose content did not change are skipped.
type CorpusSyncer struct {
	cfg config.CorpusConfig
	svc *search.Service

	watcher *rag.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	state     atomic.Value // string
	lastRun   atomic.Pointer[time.Time]
	ingested  atomic.Int64
	failed    atomic.Int64
	startOnce sync.Once
	watching  atomic.Bool
}

// CorpusStatus is the public view of the syncer, reported by /api/stats.
type CorpusStatus struct {
	Dir          string    `json:"dir"`
	Watching     bool      `json:"watching"`
	CurrentState string    `json:"current_state"`
	LastRun      time.Time `json:"last_run,omitempty"`
	Ingested     int64     `json:"ingested"`
	Failed       int64     `json:"failed"`
}

func NewCorpusSyncer(cfg config.CorpusConfig, svc *search.Service) *CorpusSyncer {
	cs := &CorpusSyncer{cfg: cfg, svc: svc}
	cs.state.Store("idle")
	return cs
}

// Synchronize ingests every matching file of the corpus directory.
func (cs *CorpusSyncer) Synchronize(ctx context.Context) error {
	cs.state.Store("synchronizing")
	defer cs.state.Store("idle")

	docs, err := rag.LoadDir(ctx, cs.cfg.Dir, cs.cfg.Include)
	if err != nil {
		return err
	}

	var added, unchanged int
	for _, doc := range docs {
		n, err := cs.svc.IngestFile(ctx, doc)
		if err != nil {
			cs.failed.Add(1)
			slog.Error("failed to ingest corpus file", "id", doc.ID, "error", err)
			continue
		}
		if n == 0 {
			unchanged++
			continue
		}
		added++
		cs.ingested.Add(1)
	}
	now := time.Now()
	cs.lastRun.Store(&now)
	slog.Info("corpus synchronized", "dir", cs.cfg.Dir, "files", len(docs), "added", added, "unchanged", unchanged)
	return nil
}

// Start watches the corpus directory until Stop is called or ctx ends.
func (cs *CorpusSyncer) Start(ctx context.Context) error {
	var err error
	cs.startOnce.Do(func() {
		var w *rag.Watcher
		w, err = rag.NewWatcher(cs.cfg.Dir, cs.cfg.Include, cs.cfg.Debounce)
		if err != nil {
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		var events <-chan rag.FileEvent
		events, err = w.Start(ctx)
		if err != nil {
			cancel()
			return
		}
		cs.watcher, cs.cancel = w, cancel
		cs.watching.Store(true)

		cs.wg.Add(1)
		go cs.run(ctx, events)
		slog.Info("watching corpus", "dir", cs.cfg.Dir)
	})
	return err
}

func (cs *CorpusSyncer) run(ctx context.Context, events <-chan rag.FileEvent) {
	defer cs.wg.Done()
	defer slog.Info("corpus watcher stopped", "dir", cs.cfg.Dir)

	for ev := range events {
		cs.state.Store("synchronizing")
		cs.ingest(ctx, ev)
		cs.state.Store("idle")
	}
}

func (cs *CorpusSyncer) ingest(ctx context.Context, ev rag.FileEvent) {
	doc, err := rag.LoadFile(cs.cfg.Dir, ev.Path)
	if err != nil {
		cs.failed.Add(1)
		slog.Warn("failed to load corpus file", "path", ev.Path, "error", err)
		return
	}
	n, err := cs.svc.IngestFile(ctx, doc)
	if err != nil {
		cs.failed.Add(1)
		slog.Error("failed to ingest corpus file", "id", doc.ID, "error", err)
		return
	}
	now := time.Now()
	cs.lastRun.Store(&now)
	if n > 0 {
		cs.ingested.Add(1)
		slog.Info("corpus file ingested", "id", doc.ID, "chunks", n)
	}
}

// Stop ends the watch and waits for the file being ingested.
func (cs *CorpusSyncer) Stop() {
	if !cs.watching.Swap(false) {
		return
	}
	cs.cancel()
	if err := cs.watcher.Stop(); err != nil {
		slog.Warn("corpus watcher close error", "error", err)
	}
	cs.wg.Wait()
}

func (cs *CorpusSyncer) Status() CorpusStatus {
	st := CorpusStatus{
		Dir:          cs.cfg.Dir,
		Watching:     cs.watching.Load(),
		CurrentState: cs.state.Load().(string),
		Ingested:     cs.ingested.Load(),
		Failed:       cs.failed.Load(),
	}
	if t := cs.lastRun.Load(); t != nil {
		st.LastRun = *t
	}
	return st
}
