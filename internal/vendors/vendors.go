// Package vendors implements the adapter layer over agenda-management
// platforms. Each adapter knows one vendor's endpoint family and returns
// meetings in the shared data model; everything downstream is
// vendor-agnostic.
//
// Adapters are API-first with an HTML fallback where the vendor has a
// usable API (Legistar, PrimeGov), pure HTML parsers otherwise. They
// flag procedural items, default attachment types to "pdf", and filter
// meetings to a configurable date window. On failure they always return
// a *VendorError; a nil error with nil data never happens.
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/engagic/engagic/internal/types"
)

// MeetingAgenda is one meeting with its decomposed agenda. Item-based
// vendors populate Items; packet-based vendors set only the meeting's
// PacketURL and leave Items nil.
type MeetingAgenda struct {
	Meeting *types.Meeting
	Items   []*types.AgendaItem
}

// Adapter is the capability set every vendor integration provides.
type Adapter interface {
	Vendor() types.Vendor

	// FetchMeetings returns up to maxCount meetings inside the date
	// window. maxCount <= 0 means no cap.
	FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error)

	// FetchMeetingDetail re-fetches one meeting's full agenda by the
	// vendor's own meeting id. Vendors without a detail surface return a
	// KindUnsupported error.
	FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error)
}

// Options configures adapter construction. Zero values get defaults.
type Options struct {
	Client   *http.Client
	Logger   *slog.Logger
	Lookback time.Duration // how far back meetings are still interesting
	Horizon  time.Duration // how far ahead

	// BaseURL overrides the endpoint catalog, for tests and one-off
	// deployments behind proxies.
	BaseURL string
}

const (
	DefaultLookback = 7 * 24 * time.Hour
	DefaultHorizon  = 14 * 24 * time.Hour
	defaultTimeout  = 30 * time.Second
)

// New constructs the adapter for a city's vendor.
func New(city *types.City, opts Options) (Adapter, error) {
	if !city.Vendor.Valid() {
		return nil, fmt.Errorf("city %s: unknown vendor %q", city.Banana, city.Vendor)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Lookback == 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.Horizon == 0 {
		opts.Horizon = DefaultHorizon
	}

	b := &base{
		city:     city,
		client:   opts.Client,
		logger:   opts.Logger.With("vendor", string(city.Vendor), "banana", city.Banana),
		window:   Window{Lookback: opts.Lookback, Horizon: opts.Horizon},
		endpoint: EndpointFor(city.Vendor),
	}
	if opts.BaseURL != "" {
		b.endpoint.API = opts.BaseURL
		b.endpoint.Web = opts.BaseURL
	}

	switch city.Vendor {
	case types.VendorLegistar:
		return &legistarAdapter{base: b}, nil
	case types.VendorPrimeGov:
		return &primegovAdapter{base: b}, nil
	case types.VendorGranicus:
		return &granicusAdapter{base: b}, nil
	case types.VendorCivicClerk:
		return &civicclerkAdapter{base: b}, nil
	case types.VendorNovusAgenda:
		return &novusAdapter{base: b}, nil
	case types.VendorCivicPlus:
		return &civicplusAdapter{base: b}, nil
	case types.VendorCustom:
		return newCustomAdapter(b)
	}
	return nil, fmt.Errorf("city %s: no adapter for vendor %q", city.Banana, city.Vendor)
}

// Window is the date filter applied to vendor output. Comparison zeroes
// the time component: a meeting "today at 7pm" is in the window all day.
type Window struct {
	Lookback time.Duration
	Horizon  time.Duration
}

// Contains reports whether date falls inside [now-Lookback, now+Horizon].
func (w Window) Contains(date, now time.Time) bool {
	day := func(t time.Time) time.Time {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	d, n := day(date), day(now)
	return !d.Before(n.Add(-w.Lookback)) && !d.After(n.Add(w.Horizon))
}

// base carries everything the concrete adapters share.
type base struct {
	city     *types.City
	client   *http.Client
	logger   *slog.Logger
	window   Window
	endpoint Endpoint
}

// newMeeting builds a meeting shell in the shared model, deriving the
// deterministic id.
func (b *base) newMeeting(vendorID, title string, date time.Time) *types.Meeting {
	m := &types.Meeting{
		Banana:   b.city.Banana,
		VendorID: vendorID,
		Title:    title,
		Date:     date,
	}
	m.ID = types.MeetingID(m.Banana, m.VendorID, m.Date, m.Title)
	return m
}

// finishItems derives ids, flags procedural entries, and defaults
// attachment types. Shared by every item-producing adapter.
func finishItems(meeting *types.Meeting, items []*types.AgendaItem) {
	for i, item := range items {
		item.MeetingID = meeting.ID
		if item.Sequence == 0 {
			item.Sequence = i + 1
		}
		item.ID = types.ItemID(meeting.ID, item.VendorItemID, item.Sequence)
		item.Procedural = Procedural(item.Title)
		for j := range item.Attachments {
			if item.Attachments[j].Type == "" {
				item.Attachments[j].Type = "pdf"
			}
		}
	}
}

// getJSON fetches url and decodes the body into v. Transport and status
// failures are KindHTTP; decode failures are KindParsing.
func (b *base) getJSON(ctx context.Context, url string, v any) error {
	body, err := b.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return b.parsingError(url, err)
	}
	return nil
}

// getHTML fetches url and parses the body as an HTML document.
func (b *base) getHTML(ctx context.Context, url string) (*html.Node, error) {
	body, err := b.get(ctx, url, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, b.parsingError(url, err)
	}
	return doc, nil
}

func (b *base) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, b.httpError(url, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "engagic/1.0 (civic agenda aggregator)")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, b.httpError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, b.httpError(url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, b.httpError(url, err)
	}
	return body, nil
}
