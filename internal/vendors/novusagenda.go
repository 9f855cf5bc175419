package vendors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// novusAdapter parses the NovusAgenda MeetingView listing. Rows carry a
// date, a meeting type, and links to the HTML agenda and the PDF render;
// there is no item surface, so meetings are packet-based.
type novusAdapter struct {
	*base
}

func (a *novusAdapter) Vendor() types.Vendor { return types.VendorNovusAgenda }

func (a *novusAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.web() + "/meetingsresponsive.aspx"
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
		date, ok := parseMeetingDate(nodeText(cells[0]), now)
		title := nodeText(cells[1])
		if !ok || title == "" || !a.window.Contains(date, now) {
			continue
		}

		meeting := a.newMeeting("", title, date)
		for _, link := range findAll(row, "a") {
			href := attrVal(link, "href")
			switch {
			case strings.Contains(href, "DisplayAgendaPDF"):
				meeting.PacketURL = absoluteURL(url, href)
			case strings.Contains(href, "ViewAgenda"):
				meeting.AgendaURL = absoluteURL(url, href)
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

func (a *novusAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	return nil, a.unsupported("meeting detail")
}
