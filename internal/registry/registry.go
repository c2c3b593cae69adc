// Package registry resolves CRS identifiers to shared, immutable CRS
// values. Definitions come from an ordered list of stores; every
// (identifier, axis order) pair is constructed once and interned.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pspoerri/crstransform/internal/crs"
	"github.com/pspoerri/crstransform/internal/wkt"
)

// ErrClosed is returned by lookups on a closed registry.
var ErrClosed = errors.New("registry closed")

// Options configures a Registry. Stores are consulted in this order:
// Stores, then Dirs, then the built-in catalog, then Remote.
type Options struct {
	Stores         []Store
	Dirs           []string
	DisableCatalog bool
	Remote         *RemoteConfig

	// Parser parses store definitions; the zero value is lenient.
	Parser wkt.Parser

	Log logrus.FieldLogger
}

type storeState struct {
	Store
	err error // set when Init failed
}

type entry struct {
	id  Identifier // canonical identifier
	crs *crs.CRS
}

// Registry is safe for concurrent use.
type Registry struct {
	stores []*storeState
	cache  cmap.ConcurrentMap[string, entry]
	group  singleflight.Group
	parser wkt.Parser
	log    logrus.FieldLogger
	closed atomic.Bool
}

// New builds a registry and initializes its stores. A store that fails to
// initialize is skipped by later lookups and reported through them; it
// does not fail New.
func New(ctx context.Context, opts Options) (*Registry, error) {
	if len(opts.Stores) == 0 && len(opts.Dirs) == 0 && opts.DisableCatalog && opts.Remote == nil {
		return nil, errors.New("registry: no definition stores configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newRegistry(ctx, opts), nil
}

func newRegistry(ctx context.Context, opts Options) *Registry {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	r := &Registry{
		cache:  cmap.New[entry](),
		parser: opts.Parser,
		log:    opts.Log,
	}

	stores := append([]Store(nil), opts.Stores...)
	if len(opts.Dirs) > 0 {
		stores = append(stores, NewDirStore(opts.Dirs...))
	}
	if !opts.DisableCatalog {
		stores = append(stores, NewCatalogStore())
	}
	if opts.Remote != nil {
		cfg := *opts.Remote
		if cfg.Log == nil {
			cfg.Log = opts.Log
		}
		stores = append(stores, NewRemoteStore(cfg))
	}

	for _, s := range stores {
		st := &storeState{Store: s}
		if err := s.Init(ctx); err != nil {
			st.err = &crs.ResourceInitError{Store: s.Name(), Err: err}
			storeInitMetric.WithLabelValues(s.Name()).Inc()
			r.log.WithFields(logrus.Fields{
				"store": s.Name(),
			}).WithError(err).Warn("CRS store disabled")
		} else {
			r.log.WithFields(logrus.Fields{
				"store": s.Name(),
				"codes": len(s.Codes()),
			}).Debug("CRS store initialized")
		}
		r.stores = append(r.stores, st)
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return newRegistry(context.Background(), Options{})
})

// Default returns the process-wide registry backed by the built-in
// catalog. It is created on first use.
func Default() *Registry { return defaultRegistry() }

func cacheKey(id Identifier, forceXY bool) string {
	if forceXY {
		return id.String() + "|xy"
	}
	return id.String()
}

// Lookup resolves id. With forceXY the returned CRS has its east/west axis
// first (see crs.WithXYOrder); otherwise axes are in authority order.
// Repeated lookups of the same identifier and flag return the identical
// pointer.
func (r *Registry) Lookup(id string, forceXY bool) (*crs.CRS, error) {
	return r.LookupContext(context.Background(), id, forceXY)
}

// LookupContext is Lookup with a context bounding any store I/O.
func (r *Registry) LookupContext(ctx context.Context, id string, forceXY bool) (*crs.CRS, error) {
	if r.closed.Load() {
		lookupsMetric.WithLabelValues("error").Inc()
		return nil, &crs.ResourceInitError{Store: "registry", Err: ErrClosed}
	}
	nid, err := Normalize(id)
	if err != nil {
		lookupsMetric.WithLabelValues("error").Inc()
		return nil, err
	}
	if e, ok := r.cache.Get(cacheKey(nid, forceXY)); ok {
		lookupsMetric.WithLabelValues("hit").Inc()
		return e.crs, nil
	}
	e, err := r.resolve(ctx, id, nid, forceXY)
	if err != nil {
		lookupsMetric.WithLabelValues("error").Inc()
		r.log.WithFields(logrus.Fields{
			"id":      id,
			"forceXY": forceXY,
		}).WithError(err).Warn("CRS lookup failed")
		return nil, err
	}
	lookupsMetric.WithLabelValues("miss").Inc()
	return e.crs, nil
}

// resolve builds the entry for nid once, however many goroutines ask for
// it concurrently.
func (r *Registry) resolve(ctx context.Context, raw string, nid Identifier, forceXY bool) (entry, error) {
	key := cacheKey(nid, forceXY)
	// The shared lookup must not fail because the caller that started it
	// gave up; stores bound their own I/O. Each caller still honours ctx.
	ctx, caller := context.WithoutCancel(ctx), ctx
	ch := r.group.DoChan(key, func() (any, error) {
		if e, ok := r.cache.Get(key); ok {
			return e, nil
		}
		if forceXY {
			natural, err := r.resolve(ctx, raw, nid, false)
			if err != nil {
				return entry{}, err
			}
			e := r.intern(cacheKey(natural.id, true), entry{id: natural.id, crs: crs.WithXYOrder(natural.crs)})
			return r.intern(key, e), nil
		}

		def, store, err := r.definition(ctx, raw, nid)
		if err != nil {
			return entry{}, err
		}
		canonical := cacheKey(def.ID, false)
		if e, ok := r.cache.Get(canonical); ok {
			return r.intern(key, e), nil
		}
		c, err := r.parser.Parse(def.WKT)
		if err != nil {
			return entry{}, fmt.Errorf("%s definition of %s: %w", store, def.ID, err)
		}
		r.log.WithFields(logrus.Fields{
			"id":    nid.String(),
			"as":    def.ID.String(),
			"store": store,
			"crs":   c.String(),
		}).Debug("CRS resolved")
		e := r.intern(canonical, entry{id: def.ID, crs: c})
		return r.intern(key, e), nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return entry{}, res.Err
		}
		return res.Val.(entry), nil
	case <-caller.Done():
		return entry{}, caller.Err()
	}
}

// intern stores e under key unless another entry got there first, and
// returns whichever entry is cached.
func (r *Registry) intern(key string, e entry) entry {
	if r.cache.SetIfAbsent(key, e) {
		return e
	}
	got, _ := r.cache.Get(key)
	return got
}

// definition asks the stores in order. Stores that are disabled or fail
// are skipped; if no store has the definition and one of them failed, the
// failure is returned instead of UnknownCRSError.
func (r *Registry) definition(ctx context.Context, raw string, nid Identifier) (Definition, string, error) {
	var failure error
	for _, s := range r.stores {
		if s.err != nil {
			if failure == nil {
				failure = s.err
			}
			continue
		}
		def, err := s.Definition(ctx, nid)
		switch {
		case err == nil:
			return def, s.Name(), nil
		case errors.Is(err, ErrNotFound):
			continue
		default:
			r.log.WithFields(logrus.Fields{
				"id":    nid.String(),
				"store": s.Name(),
			}).WithError(err).Debug("CRS store failed")
			if !errors.Is(err, crs.ErrResourceInit) {
				err = &crs.ResourceInitError{Store: s.Name(), Err: err}
			}
			if failure == nil {
				failure = err
			}
		}
	}
	if failure != nil {
		return Definition{}, "", failure
	}
	return Definition{}, "", &crs.UnknownCRSError{ID: raw}
}

// AvailableCodes returns the sorted union of identifiers the initialized
// stores can resolve without I/O.
func (r *Registry) AvailableCodes() []string {
	seen := map[string]bool{}
	var codes []string
	for _, s := range r.stores {
		if s.err != nil {
			continue
		}
		for _, c := range s.Codes() {
			if !seen[c] {
				seen[c] = true
				codes = append(codes, c)
			}
		}
	}
	sort.Strings(codes)
	return codes
}

// Close releases the stores and drops the cache. CRS values returned
// earlier stay valid.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	var errs []error
	for _, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", s.Name(), err))
		}
	}
	r.cache.Clear()
	return errors.Join(errs...)
}
