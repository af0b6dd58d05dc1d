// Package alloc tracks native GPU handle allocations for a backend
// instance. Every buffer, texture, and pipeline a backend creates is
// registered here with its size and an optional disposer, so that leaks
// are detectable and teardown is total.
package alloc

import (
	"container/list"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Default configuration values.
const (
	// DefaultHistoryLimit caps the diagnostic event ring buffer.
	DefaultHistoryLimit = 256
)

// Record tracks one live native handle.
type Record struct {
	// ID is monotonic per registry, assigned at registration.
	ID uint64

	// Kind groups records ("buffer", "texture", "pipeline", ...).
	Kind string

	// Handle is the native object. It must be comparable; backends use
	// interface or pointer handles, which are.
	Handle any

	// Bytes is the GPU-side size attributed to the handle, 0 if unknown.
	Bytes uint64

	// Label is an optional debug label.
	Label string

	// CreatedAt is the registration time.
	CreatedAt time.Time

	disposer func() error
}

// Age returns how long the record has been live.
func (r *Record) Age() time.Duration { return time.Since(r.CreatedAt) }

// EventOp distinguishes history entries.
type EventOp string

// History event operations.
const (
	EventAlloc   EventOp = "alloc"
	EventFree    EventOp = "free"
	EventDispose EventOp = "dispose"
)

// Event is one entry in the diagnostic history ring.
type Event struct {
	Op    EventOp
	ID    uint64
	Kind  string
	Bytes uint64
	Label string
	At    time.Time
}

// Stats is a snapshot of registry counters.
type Stats struct {
	// CurrentResources is the number of live records.
	CurrentResources int

	// CurrentBytes is the sum of live record sizes.
	CurrentBytes uint64

	// TotalAllocations counts every registration ever made.
	TotalAllocations uint64

	// PeakResources is the high-water mark of live records.
	PeakResources int

	// PeakBytes is the high-water mark of live bytes.
	PeakBytes uint64

	// ByKind maps kind to its live record count.
	ByKind map[string]int

	// PeakByKind maps kind to its high-water live record count.
	PeakByKind map[string]int
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Alloc[%d live, %d KB, %d total, peak %d/%d KB]",
		s.CurrentResources,
		s.CurrentBytes/1024,
		s.TotalAllocations,
		s.PeakResources,
		s.PeakBytes/1024)
}

// Config holds options for creating a Registry.
type Config struct {
	// TrackHistory enables the diagnostic event ring buffer.
	TrackHistory bool

	// HistoryLimit caps the ring buffer length.
	// Defaults to DefaultHistoryLimit if <= 0.
	HistoryLimit int

	// Logger receives disposer-fault warnings. Defaults to a silent
	// logger when nil.
	Logger *slog.Logger
}

// Registry tracks every native handle allocated by one backend
// instance. Counters never go negative: a release or dispose that
// matches a record decrements by exactly that record's size, and
// unmatched handles are ignored.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	records map[string]map[any]*Record

	nextID     uint64
	current    int
	bytes      uint64
	total      uint64
	peak       int
	peakBytes  uint64
	peakByKind map[string]int

	trackHistory bool
	historyLimit int
	history      *list.List

	logger *slog.Logger
}

// NewRegistry creates a registry with the given configuration.
func NewRegistry(cfg Config) *Registry {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		records:      make(map[string]map[any]*Record),
		peakByKind:   make(map[string]int),
		trackHistory: cfg.TrackHistory,
		historyLimit: limit,
		history:      list.New(),
		logger:       logger,
	}
}

// Register tracks a native handle. A nil handle returns nil without
// mutating any counter. The disposer, when non-nil, is invoked by
// Dispose/DisposeKind/DisposeAll; Release removes the record without
// invoking it.
func (r *Registry) Register(kind string, handle any, disposer func() error, bytes uint64, label string) *Record {
	if handle == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byHandle, ok := r.records[kind]
	if !ok {
		byHandle = make(map[any]*Record)
		r.records[kind] = byHandle
	}

	// Re-registering the same handle replaces the old record without
	// invoking its disposer; counters stay exact.
	if old, ok := byHandle[handle]; ok {
		r.removeLocked(old, EventFree)
	}

	r.nextID++
	rec := &Record{
		ID:        r.nextID,
		Kind:      kind,
		Handle:    handle,
		Bytes:     bytes,
		Label:     label,
		CreatedAt: time.Now(),
		disposer:  disposer,
	}
	byHandle[handle] = rec

	r.current++
	r.bytes += bytes
	r.total++
	if r.current > r.peak {
		r.peak = r.current
	}
	if r.bytes > r.peakBytes {
		r.peakBytes = r.bytes
	}
	if n := len(byHandle); n > r.peakByKind[kind] {
		r.peakByKind[kind] = n
	}

	r.recordEventLocked(EventAlloc, rec)
	return rec
}

// Release removes the record for handle without invoking its disposer.
// Returns false if no record matches.
func (r *Registry) Release(kind string, handle any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.lookupLocked(kind, handle)
	if !ok {
		return false
	}
	r.removeLocked(rec, EventFree)
	return true
}

// Dispose removes the record for handle and invokes its disposer.
// Disposer faults are logged and do not propagate: bookkeeping proceeds
// as if disposal succeeded. Returns false if no record matches.
func (r *Registry) Dispose(kind string, handle any) bool {
	r.mu.Lock()
	rec, ok := r.lookupLocked(kind, handle)
	if ok {
		r.removeLocked(rec, EventDispose)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.runDisposer(rec)
	return true
}

// DisposeKind disposes every record of the given kind and returns the
// number disposed.
func (r *Registry) DisposeKind(kind string) int {
	r.mu.Lock()
	byHandle := r.records[kind]
	recs := make([]*Record, 0, len(byHandle))
	for _, rec := range byHandle {
		recs = append(recs, rec)
	}
	for _, rec := range recs {
		r.removeLocked(rec, EventDispose)
	}
	r.mu.Unlock()

	for _, rec := range recs {
		r.runDisposer(rec)
	}
	return len(recs)
}

// DisposeAll disposes every live record. On return CurrentResources and
// CurrentBytes are zero regardless of prior history.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	var recs []*Record
	for _, byHandle := range r.records {
		for _, rec := range byHandle {
			recs = append(recs, rec)
		}
	}
	for _, rec := range recs {
		r.removeLocked(rec, EventDispose)
	}
	r.mu.Unlock()

	for _, rec := range recs {
		r.runDisposer(rec)
	}
}

// DetectLeaks returns every live record whose age strictly exceeds
// maxAge, oldest first. With maxAge 0 it returns all live records.
// Pure query: no counter or record is mutated.
func (r *Registry) DetectLeaks(maxAge time.Duration) []*Record {
	now := time.Now()

	r.mu.Lock()
	var out []*Record
	for _, byHandle := range r.records {
		for _, rec := range byHandle {
			// maxAge 0 means every live record, including ones created
			// within the current clock tick.
			if maxAge == 0 || now.Sub(rec.CreatedAt) > maxAge {
				out = append(out, rec)
			}
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKind := make(map[string]int, len(r.records))
	for kind, byHandle := range r.records {
		if len(byHandle) > 0 {
			byKind[kind] = len(byHandle)
		}
	}
	peakByKind := make(map[string]int, len(r.peakByKind))
	for kind, n := range r.peakByKind {
		peakByKind[kind] = n
	}

	return Stats{
		CurrentResources: r.current,
		CurrentBytes:     r.bytes,
		TotalAllocations: r.total,
		PeakResources:    r.peak,
		PeakBytes:        r.peakBytes,
		ByKind:           byKind,
		PeakByKind:       peakByKind,
	}
}

// History returns a copy of the diagnostic event ring, oldest first.
// Empty unless TrackHistory was set.
func (r *Registry) History() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, r.history.Len())
	for e := r.history.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Event))
	}
	return out
}

// lookupLocked finds a record by kind and handle. Caller must hold mu.
func (r *Registry) lookupLocked(kind string, handle any) (*Record, bool) {
	byHandle, ok := r.records[kind]
	if !ok {
		return nil, false
	}
	rec, ok := byHandle[handle]
	return rec, ok
}

// removeLocked detaches a record and decrements counters by exactly the
// record's size. Caller must hold mu.
func (r *Registry) removeLocked(rec *Record, op EventOp) {
	byHandle, ok := r.records[rec.Kind]
	if !ok {
		return
	}
	if _, ok := byHandle[rec.Handle]; !ok {
		return
	}
	delete(byHandle, rec.Handle)

	r.current--
	r.bytes -= rec.Bytes
	r.recordEventLocked(op, rec)
}

// recordEventLocked appends to the history ring, trimming the oldest
// entry past the cap. Caller must hold mu.
func (r *Registry) recordEventLocked(op EventOp, rec *Record) {
	if !r.trackHistory {
		return
	}
	r.history.PushBack(Event{
		Op:    op,
		ID:    rec.ID,
		Kind:  rec.Kind,
		Bytes: rec.Bytes,
		Label: rec.Label,
		At:    time.Now(),
	})
	for r.history.Len() > r.historyLimit {
		r.history.Remove(r.history.Front())
	}
}

// runDisposer invokes a record's disposer outside the registry lock,
// converting errors and panics into warnings. The resource is
// considered freed even if native cleanup partially failed.
func (r *Registry) runDisposer(rec *Record) {
	if rec.disposer == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("disposer panicked",
				"kind", rec.Kind, "id", rec.ID, "label", rec.Label, "panic", p)
		}
	}()
	if err := rec.disposer(); err != nil {
		r.logger.Warn("disposer failed",
			"kind", rec.Kind, "id", rec.ID, "label", rec.Label, "err", err)
	}
}
