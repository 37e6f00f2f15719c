// Package session keeps one layer stack per editing session in memory and
// mirrors it to a snapshot store.
package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"studio/internal/infra"
	"studio/internal/layers"
)

var (
	ErrNotFound  = errors.New("session: not found")
	ErrInvalidID = errors.New("session: invalid id")
	// ErrStale is returned by Save when the stack was dropped or replaced
	// after the caller opened it.
	ErrStale = errors.New("session: stack is no longer live")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id can name a session.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Options configures a Registry.
type Options struct {
	// IdleTTL drops stacks from memory after this long without access. They
	// are reloaded from the store on next use.
	IdleTTL time.Duration
	Logger  *infra.Logger
}

// entry is one live session. mu orders saves and drops so the store never
// goes back to an older version.
type entry struct {
	st *layers.Stack

	mu        sync.Mutex
	persisted bool
	saved     uint64
}

// Registry hands out the live stack for each session.
type Registry struct {
	store  SnapshotStore
	live   *cache.Cache
	loads  singleflight.Group
	logger *infra.Logger
}

func NewRegistry(store SnapshotStore, opts Options) *Registry {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Registry{
		store:  store,
		live:   cache.New(ttl, ttl/2),
		logger: logger,
	}
}

// Open returns the stack for id, loading it from the store or creating a
// fresh one when none was saved.
func (r *Registry) Open(ctx context.Context, id string) (*layers.Stack, error) {
	return r.get(ctx, id, true)
}

// Lookup is Open without creation: unknown sessions yield ErrNotFound.
func (r *Registry) Lookup(ctx context.Context, id string) (*layers.Stack, error) {
	return r.get(ctx, id, false)
}

func (r *Registry) get(ctx context.Context, id string, create bool) (*layers.Stack, error) {
	e, err := r.entry(ctx, id, create)
	if err != nil {
		return nil, err
	}
	return e.st, nil
}

func (r *Registry) entry(ctx context.Context, id string, create bool) (*entry, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	if v, ok := r.live.Get(id); ok {
		r.live.SetDefault(id, v)
		return v.(*entry), nil
	}
	v, err, _ := r.loads.Do(id, func() (any, error) {
		if v, ok := r.live.Get(id); ok {
			return v, nil
		}
		snap, err := r.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		e := &entry{st: layers.Restore(snap), persisted: true, saved: snap.Version}
		r.live.SetDefault(id, e)
		r.logger.Debug().Str("session_id", id).Int("layers", e.st.Len()).Msg("session: restored")
		return e, nil
	})
	if errors.Is(err, ErrNotFound) && create {
		fresh := &entry{st: layers.NewStack()}
		if r.live.Add(id, fresh, cache.DefaultExpiration) != nil {
			if v, ok := r.live.Get(id); ok {
				return v.(*entry), nil
			}
		}
		r.logger.Debug().Str("session_id", id).Msg("session: created")
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// current returns the live entry for id when it still holds st.
func (r *Registry) current(id string, st *layers.Stack) (*entry, bool) {
	v, ok := r.live.Get(id)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	return e, e.st == st
}

// Save writes the current snapshot of st for id. Saves for one session are
// serialized and a snapshot no newer than the last one written is skipped.
// A stack that is no longer the live one for id yields ErrStale.
func (r *Registry) Save(ctx context.Context, id string, st *layers.Stack) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	e, ok := r.current(id, st)
	if !ok {
		return ErrStale
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := r.current(id, st); !ok {
		return ErrStale
	}
	snap := st.Snapshot()
	if e.persisted && snap.Version <= e.saved {
		return nil
	}
	if err := r.store.Save(ctx, id, snap); err != nil {
		return err
	}
	e.persisted, e.saved = true, snap.Version
	return nil
}

// Drop forgets the session in memory and in the store. It waits for a save
// in progress, and later saves of the dropped stack fail with ErrStale.
func (r *Registry) Drop(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if v, ok := r.live.Get(id); ok {
		e := v.(*entry)
		e.mu.Lock()
		defer e.mu.Unlock()
	}
	err := r.store.Delete(ctx, id)
	r.live.Delete(id)
	return err
}

// Live reports how many sessions are held in memory.
func (r *Registry) Live() int {
	return r.live.ItemCount()
}
