package vendors

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// civicplusAdapter parses the CivicPlus AgendaCenter. Meetings are
// identified by ViewFile links whose href encodes the meeting date
// (`/AgendaCenter/ViewFile/Agenda/_MMDDYYYY-NNN`); the surrounding
// heading names the body. Packet-based.
type civicplusAdapter struct {
	*base
}

func (a *civicplusAdapter) Vendor() types.Vendor { return types.VendorCivicPlus }

var civicplusHref = regexp.MustCompile(`/AgendaCenter/ViewFile/Agenda/_(\d{2})(\d{2})(\d{4})-(\d+)`)

func (a *civicplusAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.web() + "/AgendaCenter"
	doc, err := a.getHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	links := findAll(doc, "a")
	now := time.Now()
	seen := make(map[string]bool)
	var agendas []*MeetingAgenda
	for _, link := range links {
		href := attrVal(link, "href")
		m := civicplusHref.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		date, err := time.Parse("01/02/2006", fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3]))
		if err != nil || !a.window.Contains(date, now) {
			continue
		}

		title := nodeText(link)
		if title == "" || title == "Agenda" {
			title = "City Meeting " + m[4]
		}
		vendorID := m[4]
		if seen[vendorID] {
			continue
		}
		seen[vendorID] = true

		meeting := a.newMeeting(vendorID, title, date.UTC())
		meeting.PacketURL = absoluteURL(url, href)
		agendas = append(agendas, &MeetingAgenda{Meeting: meeting})
		if maxCount > 0 && len(agendas) >= maxCount {
			break
		}
	}
	if len(agendas) == 0 && len(links) == 0 {
		return nil, a.parsingError(url, fmt.Errorf("agenda center page has no links"))
	}
	a.logger.Info("fetched meetings", "method", "html", "count", len(agendas))
	return agendas, nil
}

func (a *civicplusAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	return nil, a.unsupported("meeting detail")
}
