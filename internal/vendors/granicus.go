package vendors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// granicusAdapter parses the Granicus ViewPublisher listing. Granicus
// serves no public item API; meetings are packet-based and processed
// monolithically. Dates arrive in whatever format the city's template
// uses, so parsing falls back to natural-language when the known
// layouts fail.
type granicusAdapter struct {
	*base
}

func (a *granicusAdapter) Vendor() types.Vendor { return types.VendorGranicus }

func (a *granicusAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.web() + "/ViewPublisher.php?view_id=1"
	doc, err := a.getHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	rows := tableRows(doc)
	if len(rows) == 0 {
		return nil, a.parsingError(url, fmt.Errorf("listing page has no meeting table"))
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
		if !ok || title == "" || !a.window.Contains(date, now) {
			continue
		}

		meeting := a.newMeeting("", title, date)
		for _, link := range findAll(row, "a") {
			label := strings.ToLower(nodeText(link))
			href := absoluteURL(url, attrVal(link, "href"))
			switch {
			case strings.Contains(label, "packet"):
				meeting.PacketURL = href
			case strings.Contains(label, "agenda"):
				meeting.AgendaURL = href
			}
		}
		agendas = append(agendas, &MeetingAgenda{Meeting: meeting})
		if maxCount > 0 && len(agendas) >= maxCount {
			break
		}
	}
	a.logger.Info("fetched meetings", "method", "html", "count", len(agendas))
	return agendas, nil
}

func (a *granicusAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	return nil, a.unsupported("meeting detail")
}
