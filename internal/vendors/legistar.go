package vendors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// legistarAdapter speaks the Granicus Legistar web API, the richest item
// surface of any vendor: full agendas with matter files, matter types,
// and per-item attachments. When the API is down it degrades to parsing
// the public Calendar.aspx listing, which yields meetings without items.
type legistarAdapter struct {
	*base
}

func (a *legistarAdapter) Vendor() types.Vendor { return types.VendorLegistar }

type legistarEvent struct {
	EventID         int    `json:"EventId"`
	EventDate       string `json:"EventDate"`
	EventTime       string `json:"EventTime"`
	EventBodyName   string `json:"EventBodyName"`
	EventAgendaFile string `json:"EventAgendaFile"`
	EventInSiteURL  string `json:"EventInSiteURL"`
}

type legistarEventItem struct {
	EventItemID             int    `json:"EventItemId"`
	EventItemTitle          string `json:"EventItemTitle"`
	EventItemAgendaSequence int    `json:"EventItemAgendaSequence"`
	EventItemAgendaNumber   string `json:"EventItemAgendaNumber"`
	EventItemMatterFile     string `json:"EventItemMatterFile"`
	EventItemMatterID       int    `json:"EventItemMatterId"`
	EventItemMatterType     string `json:"EventItemMatterType"`
	EventItemPassedFlagName string `json:"EventItemPassedFlagName"`
	EventItemMatterAttachments []struct {
		MatterAttachmentName      string `json:"MatterAttachmentName"`
		MatterAttachmentHyperlink string `json:"MatterAttachmentHyperlink"`
	} `json:"EventItemMatterAttachments"`
}

type legistarVote struct {
	VoteValueName string `json:"VoteValueName"`
}

func (a *legistarAdapter) FetchMeetings(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	agendas, err := a.fetchViaAPI(ctx, maxCount)
	if err == nil {
		a.logger.Info("fetched meetings", "method", "api", "count", len(agendas))
		return agendas, nil
	}
	if !IsRetryable(err) {
		return nil, err
	}

	// API unreachable; the calendar page usually still serves.
	a.logger.Warn("legistar api unavailable, falling back to calendar html", "error", err)
	agendas, herr := a.fetchViaCalendar(ctx, maxCount)
	if herr != nil {
		return nil, herr
	}
	a.logger.Info("fetched meetings", "method", "html", "count", len(agendas))
	return agendas, nil
}

func (a *legistarAdapter) fetchViaAPI(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := fmt.Sprintf("%s/events?$orderby=EventDate+desc&$top=200", a.api())
	var events []legistarEvent
	if err := a.getJSON(ctx, url, &events); err != nil {
		return nil, err
	}

	now := time.Now()
	var agendas []*MeetingAgenda
	for _, ev := range events {
		date, ok := a.eventDate(ev)
		if !ok || !a.window.Contains(date, now) {
			continue
		}
		agenda, err := a.buildAgenda(ctx, ev, date)
		if err != nil {
			return nil, err
		}
		agendas = append(agendas, agenda)
		if maxCount > 0 && len(agendas) >= maxCount {
			break
		}
	}
	return agendas, nil
}

func (a *legistarAdapter) buildAgenda(ctx context.Context, ev legistarEvent, date time.Time) (*MeetingAgenda, error) {
	meeting := a.newMeeting(strconv.Itoa(ev.EventID), ev.EventBodyName, date)
	meeting.AgendaURL = ev.EventAgendaFile

	items, err := a.fetchEventItems(ctx, ev.EventID)
	if err != nil {
		return nil, err
	}
	finishItems(meeting, items)
	return &MeetingAgenda{Meeting: meeting, Items: items}, nil
}

func (a *legistarAdapter) fetchEventItems(ctx context.Context, eventID int) ([]*types.AgendaItem, error) {
	url := fmt.Sprintf("%s/events/%d/eventitems?AgendaNote=1&MinutesNote=1&Attachments=1", a.api(), eventID)
	var raw []legistarEventItem
	if err := a.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	var items []*types.AgendaItem
	for _, ri := range raw {
		title := strings.TrimSpace(ri.EventItemTitle)
		if title == "" {
			continue
		}
		item := &types.AgendaItem{
			Title:        title,
			Sequence:     ri.EventItemAgendaSequence,
			AgendaNumber: ri.EventItemAgendaNumber,
			MatterFile:   strings.TrimSpace(ri.EventItemMatterFile),
			MatterType:   ri.EventItemMatterType,
			VoteOutcome:  legistarOutcome(ri.EventItemPassedFlagName),
		}
		if ri.EventItemID != 0 {
			item.VendorItemID = strconv.Itoa(ri.EventItemID)
		}
		if ri.EventItemMatterID != 0 {
			item.VendorMatterID = strconv.Itoa(ri.EventItemMatterID)
		}
		for _, att := range ri.EventItemMatterAttachments {
			item.Attachments = append(item.Attachments, types.Attachment{
				URL:  att.MatterAttachmentHyperlink,
				Name: att.MatterAttachmentName,
			})
		}
		items = append(items, item)
	}
	return items, nil
}

// legistarOutcome maps EventItemPassedFlagName onto the shared outcome
// vocabulary. The flag is empty for items not yet acted on.
func legistarOutcome(flag string) types.VoteOutcome {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "":
		return ""
	case "pass", "passed", "adopted", "approved":
		return types.VotePassed
	case "fail", "failed", "defeated":
		return types.VoteFailed
	case "tabled", "deferred":
		return types.VoteTabled
	case "withdrawn":
		return types.VoteWithdrawn
	case "referred", "referred to committee":
		return types.VoteReferred
	}
	return types.VoteUnknown
}

// fetchVoteTally aggregates the roll call for one event item. An empty
// roll call (voice vote) yields a nil tally.
func (a *legistarAdapter) fetchVoteTally(ctx context.Context, eventID int, itemID string) (*types.VoteTally, error) {
	url := fmt.Sprintf("%s/events/%d/eventitems/%s/votes", a.api(), eventID, itemID)
	var votes []legistarVote
	if err := a.getJSON(ctx, url, &votes); err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, nil
	}
	var t types.VoteTally
	for _, v := range votes {
		switch strings.ToLower(strings.TrimSpace(v.VoteValueName)) {
		case "in favor", "yes", "aye":
			t.Yes++
		case "against", "no", "nay":
			t.No++
		case "abstain", "abstained", "recused":
			t.Abstain++
		case "absent", "excused":
			t.Absent++
		}
	}
	return &t, nil
}

// eventDate merges Legistar's split date and time fields. EventDate is a
// midnight timestamp; EventTime is "6:00 PM" or empty.
func (a *legistarAdapter) eventDate(ev legistarEvent) (time.Time, bool) {
	date, err := time.Parse("2006-01-02T15:04:05", ev.EventDate)
	if err != nil {
		return time.Time{}, false
	}
	if ev.EventTime != "" {
		if t, err := time.Parse("3:04 PM", strings.TrimSpace(ev.EventTime)); err == nil {
			date = date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		}
	}
	return date.UTC(), true
}

// fetchViaCalendar parses the public calendar listing: one table row per
// meeting with the body name, a date cell, and an "Agenda" link. No items
// are recoverable from this surface.
func (a *legistarAdapter) fetchViaCalendar(ctx context.Context, maxCount int) ([]*MeetingAgenda, error) {
	url := a.web() + "/Calendar.aspx"
	doc, err := a.getHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var agendas []*MeetingAgenda
	for _, row := range tableRows(doc) {
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
			if strings.EqualFold(strings.TrimSpace(nodeText(link)), "agenda") {
				// The calendar's Agenda link is a compiled document. No
				// items are recoverable on this surface, so it doubles as
				// the packet and the meeting summarizes monolithically.
				meeting.AgendaURL = absoluteURL(url, attrVal(link, "href"))
				meeting.PacketURL = meeting.AgendaURL
			}
		}
		agendas = append(agendas, &MeetingAgenda{Meeting: meeting})
		if maxCount > 0 && len(agendas) >= maxCount {
			break
		}
	}
	if len(agendas) == 0 && len(tableRows(doc)) == 0 {
		return nil, a.parsingError(url, fmt.Errorf("calendar page has no meeting table"))
	}
	return agendas, nil
}

func (a *legistarAdapter) FetchMeetingDetail(ctx context.Context, vendorID string) (*MeetingAgenda, error) {
	eventID, err := strconv.Atoi(vendorID)
	if err != nil {
		return nil, a.parsingError("", fmt.Errorf("legistar event id %q is not numeric", vendorID))
	}

	url := fmt.Sprintf("%s/events/%d", a.api(), eventID)
	var ev legistarEvent
	if err := a.getJSON(ctx, url, &ev); err != nil {
		return nil, err
	}
	date, ok := a.eventDate(ev)
	if !ok {
		return nil, a.parsingError(url, fmt.Errorf("event %d has unparseable date %q", eventID, ev.EventDate))
	}
	agenda, err := a.buildAgenda(ctx, ev, date)
	if err != nil {
		return nil, err
	}

	// The detail surface additionally resolves roll-call tallies for voted
	// items. The bulk path skips this: one extra request per item is only
	// worth it when a single meeting is being refreshed.
	for _, item := range agenda.Items {
		if item.VoteOutcome == "" || item.VendorItemID == "" {
			continue
		}
		tally, terr := a.fetchVoteTally(ctx, eventID, item.VendorItemID)
		if terr != nil {
			a.logger.Warn("vote tally unavailable", "event_item", item.VendorItemID, "error", terr)
			continue
		}
		item.VoteTally = tally
	}
	return agenda, nil
}
