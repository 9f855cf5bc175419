package vendors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// civicclerkAdapter speaks the CivicClerk OData API. Events carry
// published agenda files but no item decomposition; meetings are
// packet-based.
type civicclerkAdapter struct {
	*base
}

func (a *civicclerkAdapter) Vendor() types.Vendor { return types.VendorCivicClerk }

type civicclerkEvents struct {
	Value []civicclerkEvent `json:"value"`
}

type civicclerkEvent struct {
	ID             int    `json:"id"`
	EventName      string `json:"eventName"`
	StartDateTime  string `json:"startDateTime"`
	PublishedFiles []struct {
		FileID int    `json:"fileId"`
		Type   string `json:"type"`
	} `json:"publishedFiles"`
}

func (a *civicclerkAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.api() + "/Events?$orderby=startDateTime"
	var resp civicclerkEvents
	if err := a.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	var agendas []*MeetingAgenda
	for _, ev := range resp.Value {
		date, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(ev.StartDateTime, "Z"))
		if err != nil {
			return nil, a.parsingError(url, fmt.Errorf("event %d has unparseable startDateTime %q", ev.ID, ev.StartDateTime))
		}
		if !a.window.Contains(date.UTC(), now) {
			continue
		}

		meeting := a.newMeeting(strconv.Itoa(ev.ID), ev.EventName, date.UTC())
		for _, f := range ev.PublishedFiles {
			fileURL := fmt.Sprintf("%s/Meetings/GetMeetingFileStream(fileId=%d,plainText=false)", a.api(), f.FileID)
			if strings.EqualFold(f.Type, "agenda") && meeting.PacketURL == "" {
				meeting.PacketURL = fileURL
			}
			if strings.Contains(strings.ToLower(f.Type), "packet") {
				meeting.PacketURL = fileURL
			}
		}
		agendas = append(agendas, &MeetingAgenda{Meeting: meeting})
		if maxCount > 0 && len(agendas) >= maxCount {
			break
		}
	}
	a.logger.Info("fetched meetings", "method", "api", "count", len(agendas))
	return agendas, nil
}

func (a *civicclerkAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	return nil, a.unsupported("meeting detail")
}
