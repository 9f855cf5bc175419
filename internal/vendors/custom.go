package vendors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// customBuilders maps a banana to its one-off adapter constructor.
// Cities that publish on a homegrown CMS get a per-city parser here
// instead of forcing a fake vendor entry.
var customBuilders = map[string]func(*base) Adapter{
	"berkeleyCA":  func(b *base) Adapter { return &berkeleyAdapter{base: b} },
	"menloparkCA": func(b *base) Adapter { return &menloParkAdapter{base: b} },
}

func newCustomAdapter(b *base) (Adapter, error) {
	build, ok := customBuilders[b.city.Banana]
	if !ok {
		return nil, fmt.Errorf("city %s: no custom adapter registered", b.city.Banana)
	}
	return build(b), nil
}

// berkeleyAdapter parses Berkeley's Drupal agenda listing: a table of
// council meetings with per-row agenda PDF links. Packet-based.
type berkeleyAdapter struct {
	*base
}

func (a *berkeleyAdapter) Vendor() types.Vendor { return types.VendorCustom }

func (a *berkeleyAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.web() + "/your-government/city-council/city-council-agendas"
	if a.endpoint.Web == "" {
		url = "https://berkeleyca.gov/your-government/city-council/city-council-agendas"
	}
	return a.scrapeListing(ctx, url, maxCount)
}

func (a *berkeleyAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	return nil, a.unsupported("meeting detail")
}

// menloParkAdapter parses Menlo Park's legacy agenda page, which uses
// the same row shape as Berkeley's listing.
type menloParkAdapter struct {
	*base
}

func (a *menloParkAdapter) Vendor() types.Vendor { return types.VendorCustom }

func (a *menloParkAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.web() + "/AgendasMinutes"
	if a.endpoint.Web == "" {
		url = "https://menlopark.gov/AgendasMinutes"
	}
	return a.scrapeListing(ctx, url, maxCount)
}

func (a *menloParkAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	return nil, a.unsupported("meeting detail")
}

// scrapeListing handles the shared shape: table rows of
// [title, date, agenda link].
func (b *base) scrapeListing(ctx context.Context, url string, maxCount int) ([]*MeetingAgenda, error) {
	doc, err := b.getHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	rows := tableRows(doc)
	if len(rows) == 0 {
		return nil, b.parsingError(url, fmt.Errorf("listing page has no meeting table"))
	}

	now := time.Now()
	var agendas []*MeetingAgenda
	for _, row := range rows {
		cells := findAll(row, "td")
		if len(cells) < 2 {
			continue
		}
		title := nodeText(cells[0])
		date, ok := parseMeetingDate(nodeText(cells[1]), now)
		if !ok || title == "" || !b.window.Contains(date, now) {
			continue
		}

		meeting := b.newMeeting("", title, date)
		for _, link := range findAll(row, "a") {
			href := absoluteURL(url, attrVal(link, "href"))
			if strings.HasSuffix(strings.ToLower(href), ".pdf") {
				meeting.PacketURL = href
			} else if strings.Contains(strings.ToLower(nodeText(link)), "agenda") {
				meeting.AgendaURL = href
			}
		}
		agendas = append(agendas, &MeetingAgenda{Meeting: meeting})
		if maxCount > 0 && len(agendas) >= maxCount {
			break
		}
	}
	b.logger.Info("fetched meetings", "method", "html", "count", len(agendas))
	return agendas, nil
}
