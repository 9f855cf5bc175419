// Package fetcher runs vendor syncs: one adapter call per city, one
// StoreMeetingFromSync transaction per meeting. Outbound vendor traffic
// is throttled by per-vendor token buckets shared across all cities on
// that vendor.
package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
	"github.com/engagic/engagic/internal/vendors"
)

// adapterFactory builds the vendor adapter for a city. Tests swap it for
// fakes; production uses vendors.New.
type adapterFactory func(city *types.City, opts vendors.Options) (vendors.Adapter, error)

// Options configures a Fetcher. Store is required.
type Options struct {
	Store    storage.Storage
	Logger   *slog.Logger
	Lookback time.Duration
	Horizon  time.Duration

	// SyncPool bounds concurrent city syncs in SyncAll. Defaults to 8.
	SyncPool int

	newAdapter adapterFactory
}

type Fetcher struct {
	store      storage.Storage
	logger     *slog.Logger
	lookback   time.Duration
	horizon    time.Duration
	syncPool   int
	newAdapter adapterFactory

	mu      sync.Mutex
	clients map[types.Vendor]*http.Client
}

func New(opts Options) *Fetcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SyncPool == 0 {
		opts.SyncPool = 8
	}
	if opts.newAdapter == nil {
		opts.newAdapter = vendors.New
	}
	return &Fetcher{
		store:      opts.Store,
		logger:     opts.Logger,
		lookback:   opts.Lookback,
		horizon:    opts.Horizon,
		syncPool:   opts.SyncPool,
		newAdapter: opts.newAdapter,
		clients:    make(map[types.Vendor]*http.Client),
	}
}

// CitySync summarizes one city's sync for logging and CLI output.
type CitySync struct {
	Banana     string
	Meetings   int
	Items      int
	NewMatters int
	Enqueued   int
}

// SyncCity fetches a city's meetings and persists them. Per-meeting
// store failures are logged and skipped; the fetch itself failing is
// returned to the caller for queue-level retry accounting.
func (f *Fetcher) SyncCity(ctx context.Context, city *types.City) (*CitySync, error) {
	adapter, err := f.newAdapter(city, vendors.Options{
		Client:   f.clientFor(city.Vendor),
		Logger:   f.logger,
		Lookback: f.lookback,
		Horizon:  f.horizon,
	})
	if err != nil {
		return nil, err
	}

	agendas, err := adapter.FetchMeetings(ctx, 0)
	if err != nil {
		return nil, err
	}

	sum := &CitySync{Banana: city.Banana}
	for _, agenda := range agendas {
		result, err := f.store.StoreMeetingFromSync(ctx, agenda.Meeting, agenda.Items)
		if err != nil {
			f.logger.Error("failed to store meeting",
				"banana", city.Banana, "title", agenda.Meeting.Title, "error", err)
			continue
		}
		sum.Meetings++
		sum.Items += result.ItemCount
		sum.NewMatters += result.NewMatters
		if result.EnqueuedJobID != 0 {
			sum.Enqueued++
		}
	}

	f.logger.Info("city synced",
		"banana", city.Banana, "vendor", city.Vendor,
		"meetings", sum.Meetings, "items", sum.Items,
		"new_matters", sum.NewMatters, "enqueued", sum.Enqueued)
	return sum, nil
}

// SyncAll syncs every active city with a bounded pool. Individual city
// failures are logged; the first storage-level listing error aborts.
func (f *Fetcher) SyncAll(ctx context.Context) error {
	cities, err := f.store.ListCities(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.syncPool)
	for _, city := range cities {
		if city.Status != "" && city.Status != "active" {
			continue
		}
		g.Go(func() error {
			if _, err := f.SyncCity(gctx, city); err != nil {
				f.logger.Error("city sync failed", "banana", city.Banana, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// clientFor returns the vendor's shared HTTP client, whose transport
// waits on the vendor token bucket before every request.
func (f *Fetcher) clientFor(vendor types.Vendor) *http.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[vendor]; ok {
		return c
	}
	c := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &throttledTransport{
			limiter: rate.NewLimiter(rate.Limit(vendors.RateLimit(vendor)), 1),
			base:    http.DefaultTransport,
		},
	}
	f.clients[vendor] = c
	return c
}

// throttledTransport blocks each outbound request on the token bucket.
type throttledTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
