package vendors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// primegovAdapter speaks the PrimeGov public portal API. Item agendas
// come back with vendor UUID matter ids and usually no clerk file
// number, exercising the matter-identity fallback chain. When the item
// endpoint fails, the adapter degrades to the compiled agenda packet.
type primegovAdapter struct {
	*base
}

func (a *primegovAdapter) Vendor() types.Vendor { return types.VendorPrimeGov }

type primegovMeeting struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	DateTime     string `json:"dateTime"`
	DocumentList []struct {
		ID                int    `json:"id"`
		TemplateName      string `json:"templateName"`
		CompileOutputType int    `json:"compileOutputType"`
	} `json:"documentList"`
}

type primegovItem struct {
	ID          string `json:"id"` // vendor UUID
	Title       string `json:"title"`
	Sequence    int    `json:"sortOrder"`
	MatterFile  string `json:"legislationNumber"`
	Attachments []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"attachments"`
}

func (a *primegovAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.api() + "/PublicPortal/ListUpcomingMeetings"
	var raw []primegovMeeting
	if err := a.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	now := time.Now()
	var agendas []*MeetingAgenda
	for _, pm := range raw {
		date, err := time.Parse("2006-01-02T15:04:05", pm.DateTime)
		if err != nil {
			return nil, a.parsingError(url, fmt.Errorf("meeting %d has unparseable dateTime %q", pm.ID, pm.DateTime))
		}
		if !a.window.Contains(date.UTC(), now) {
			continue
		}

		agenda, err := a.buildAgenda(ctx, pm, date.UTC())
		if err != nil {
			return nil, err
		}
		agendas = append(agendas, agenda)
		if maxCount > 0 && len(agendas) >= maxCount {
			break
		}
	}
	a.logger.Info("fetched meetings", "method", "api", "count", len(agendas))
	return agendas, nil
}

func (a *primegovAdapter) buildAgenda(ctx context.Context, pm primegovMeeting, date time.Time) (*MeetingAgenda, error) {
	meeting := a.newMeeting(strconv.Itoa(pm.ID), pm.Title, date)
	for _, doc := range pm.DocumentList {
		docURL := fmt.Sprintf("%s/PublicPortal/CompiledDocument?documentId=%d", a.api(), doc.ID)
		switch {
		case strings.EqualFold(doc.TemplateName, "agenda"):
			meeting.AgendaURL = docURL
		case strings.Contains(strings.ToLower(doc.TemplateName), "packet"):
			meeting.PacketURL = docURL
		}
	}

	items, err := a.fetchItems(ctx, pm.ID)
	if err != nil {
		if !IsRetryable(err) {
			return nil, err
		}
		// Item endpoint down; the compiled packet still lets the meeting
		// be processed monolithically.
		a.logger.Warn("primegov item endpoint unavailable, packet-only", "meeting", pm.ID, "error", err)
		return &MeetingAgenda{Meeting: meeting}, nil
	}
	finishItems(meeting, items)
	return &MeetingAgenda{Meeting: meeting, Items: items}, nil
}

func (a *primegovAdapter) fetchItems(ctx context.Context, meetingID int) ([]*types.AgendaItem, error) {
	url := fmt.Sprintf("%s/PublicPortal/ListMeetingItems?meetingId=%d", a.api(), meetingID)
	var raw []primegovItem
	if err := a.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	var items []*types.AgendaItem
	for _, ri := range raw {
		title := strings.TrimSpace(ri.Title)
		if title == "" {
			continue
		}
		item := &types.AgendaItem{
			Title:          title,
			Sequence:       ri.Sequence,
			VendorItemID:   strings.TrimSpace(ri.ID),
			MatterFile:     strings.TrimSpace(ri.MatterFile),
			VendorMatterID: strings.TrimSpace(ri.ID),
		}
		for _, att := range ri.Attachments {
			item.Attachments = append(item.Attachments, types.Attachment{
				URL:  absoluteURL(a.api(), att.URL),
				Name: att.Name,
			})
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *primegovAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	meetingID, err := strconv.Atoi(vendorID)
	if err != nil {
		return nil, a.parsingError("", fmt.Errorf("primegov meeting id %q is not numeric", vendorID))
	}
	url := fmt.Sprintf("%s/PublicPortal/GetMeeting?meetingId=%d", a.api(), meetingID)
	var pm primegovMeeting
	if err := a.getJSON(ctx, url, &pm); err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02T15:04:05", pm.DateTime)
	if err != nil {
		return nil, a.parsingError(url, fmt.Errorf("meeting %d has unparseable dateTime %q", pm.ID, pm.DateTime))
	}
	return a.buildAgenda(ctx, pm, date.UTC())
}
