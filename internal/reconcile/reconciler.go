// Package reconcile decides, for every load and save, whether the
// remote row store or the local fallback store serves the request, and
// feeds remote change notifications back into subscribers. Remote
// failures are never fatal: every operation degrades to local-only
// behavior, and the worst case is an empty default document.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"badminton-expense-bot/internal/document"
	"badminton-expense-bot/internal/localstore"
	"badminton-expense-bot/internal/model"
	"badminton-expense-bot/internal/repository"
)

// RemoteStore is the durable keyed row store.
type RemoteStore interface {
	Get(ctx context.Context, key string) (*repository.DayRow, error)
	Upsert(ctx context.Context, key string, data []byte, origin string, seq int64) error
}

// LocalStore is the fallback key-value store.
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// OnChange receives documents delivered by the change subscription.
type OnChange func(key string, data *model.AppData)

// Reconciler arbitrates between the remote and local stores. Construct
// one per process with New and hand it the store handles; it owns the
// per-process origin token used to recognize self-originated change
// notifications.
type Reconciler struct {
	remote   RemoteStore
	local    LocalStore
	defaults func() *model.AppData

	// origin plus the write counter form the correlation token carried
	// by every outgoing upsert. A notification whose origin matches and
	// whose seq does not exceed the counter is this process's own write
	// echoing back, and is dropped.
	origin string
	seq    atomic.Int64

	mu      sync.Mutex
	subs    map[string]map[int]OnChange
	nextSub int
}

// New creates a Reconciler over the given stores. defaults supplies the
// document used when a key has never been stored; a nil defaults means
// an empty document.
func New(remote RemoteStore, local LocalStore, defaults func() *model.AppData) *Reconciler {
	if defaults == nil {
		defaults = model.NewAppData
	}
	return &Reconciler{
		remote:   remote,
		local:    local,
		defaults: defaults,
		origin:   uuid.NewString(),
		subs:     make(map[string]map[int]OnChange),
	}
}

// Origin returns the per-process write correlation token.
func (r *Reconciler) Origin() string {
	return r.origin
}

// Load returns the document stored under key. Remote is authoritative;
// a transport error or missing row falls back to the local store, and a
// missing or unreadable local record yields the defaults. Load never
// fails.
func (r *Reconciler) Load(ctx context.Context, key string) *model.AppData {
	row, err := r.remote.Get(ctx, key)
	switch {
	case err == nil:
		return document.Parse(row.Data)
	case errors.Is(err, repository.ErrDayNotFound):
		// No remote row yet; the local cache may still hold the day.
	default:
		log.Warn().Err(err).Str("key", key).Msg("Remote read failed, falling back to local store")
	}

	raw, err := r.local.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("Local read failed, using defaults")
		}
		return r.defaults()
	}
	return document.Parse(raw)
}

// Save persists data under key: remote upsert first, local only when
// the remote write fails. A successful remote write makes the remote
// row authoritative, so the local copy is deliberately left stale.
// Errors are logged, never returned; persistence failures must not
// block the caller's in-memory state.
func (r *Reconciler) Save(ctx context.Context, data *model.AppData, key string) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Document would not serialize, not saved")
		return
	}

	// The counter must advance before the write is issued, so an echo
	// arriving mid-flight already compares against the new value.
	seq := r.seq.Add(1)

	if err := r.remote.Upsert(ctx, key, raw, r.origin, seq); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Remote write failed, falling back to local store")
		if err := r.local.Put(ctx, key, raw); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Local write failed, document kept in memory only")
		}
	}
}

// Subscribe registers onChange for documents arriving under key from
// the change feed. The returned function cancels the subscription;
// deliveries already in flight may still complete and should be ignored
// by discarded state containers.
func (r *Reconciler) Subscribe(key string, onChange OnChange) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	if r.subs[key] == nil {
		r.subs[key] = make(map[int]OnChange)
	}
	r.subs[key][id] = onChange

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs[key], id)
		if len(r.subs[key]) == 0 {
			delete(r.subs, key)
		}
	}
}

// HandleNotification is the change feed entry point; wire it to the
// repository listener. Self-originated notifications are suppressed by
// token comparison; everything else triggers a fresh remote read for
// the affected key and delivery to its subscribers.
func (r *Reconciler) HandleNotification(ctx context.Context, n repository.Notification) {
	if n.Origin == r.origin && n.Seq <= r.seq.Load() {
		log.Debug().Str("key", n.ID).Int64("seq", n.Seq).Msg("Suppressed self-originated change notification")
		return
	}

	r.mu.Lock()
	targets := make([]OnChange, 0, len(r.subs[n.ID]))
	for _, cb := range r.subs[n.ID] {
		targets = append(targets, cb)
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	// The notification payload carries only the key; re-read the row.
	row, err := r.remote.Get(ctx, n.ID)
	if err != nil {
		log.Warn().Err(err).Str("key", n.ID).Msg("Could not fetch changed document, notification dropped")
		return
	}
	data := document.Parse(row.Data)

	for _, cb := range targets {
		cb(n.ID, data)
	}
}
