package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/engagic/engagic/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show <meeting-id | banana>",
	Short: "Show a meeting's summary, or a city's recent meetings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		// A meeting id is {banana}_{hash}; a bare banana lists the city.
		meeting, err := store.GetMeeting(ctx, args[0])
		if err == nil {
			items, err := store.GetItems(ctx, meeting.ID)
			if err != nil {
				return err
			}
			return renderMeeting(meeting, items)
		}

		meetings, err := store.ListMeetings(ctx, args[0])
		if err != nil {
			return err
		}
		if len(meetings) == 0 {
			return fmt.Errorf("no meeting or city %q", args[0])
		}
		for _, m := range meetings {
			fmt.Printf("%s  %s  %-10s  %s\n",
				m.ID, m.Date.Format("2006-01-02"), m.ProcessingStatus, m.Title)
		}
		return nil
	},
}

func renderMeeting(meeting *types.Meeting, items []*types.AgendaItem) error {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", meeting.Title)
	fmt.Fprintf(&md, "**%s** · %s · %s\n\n",
		meeting.Banana, meeting.Date.Format("Monday, January 2, 2006"), meeting.ProcessingStatus)

	if meeting.Summary != "" {
		fmt.Fprintf(&md, "%s\n\n", meeting.Summary)
	}
	if len(meeting.Topics) > 0 {
		fmt.Fprintf(&md, "*Topics: %s*\n\n", strings.Join(meeting.Topics, ", "))
	}

	for _, item := range items {
		if item.Procedural {
			continue
		}
		fmt.Fprintf(&md, "## %d. %s\n\n", item.Sequence, item.Title)
		if item.MatterFile != "" {
			fmt.Fprintf(&md, "`%s`\n\n", item.MatterFile)
		}
		if item.Summary != "" {
			fmt.Fprintf(&md, "%s\n\n", item.Summary)
		} else {
			fmt.Fprint(&md, "*Not yet summarized.*\n\n")
		}
	}

	if plainOutput() {
		fmt.Print(md.String())
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(termWidth(), 100)),
	)
	if err != nil {
		fmt.Print(md.String())
		return nil
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		fmt.Print(md.String())
		return nil
	}
	fmt.Print(out)
	return nil
}

func init() {
	rootCmd.AddCommand(showCmd)
}
