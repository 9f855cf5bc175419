package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// plainOutput reports whether styled output should be suppressed:
// piped stdout, dumb terminals, or NO_COLOR.
func plainOutput() bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return true
	}
	return termenv.EnvColorProfile() == termenv.Ascii
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Headers(headers...)
}

func printCityTable(cities []*types.City) {
	if plainOutput() {
		for _, c := range cities {
			fmt.Printf("%s\t%s, %s\t%s\t%s\t%s\n",
				c.Banana, c.Name, c.State, c.Vendor, c.Slug, c.Status)
		}
		return
	}

	t := newTable("BANANA", "CITY", "VENDOR", "SLUG", "STATUS")
	for _, c := range cities {
		status := c.Status
		if status == "" {
			status = "active"
		}
		t.Row(c.Banana, c.Name+", "+c.State, string(c.Vendor), c.Slug, status)
	}
	fmt.Println(t.Render())
}

func printStatsTable(stats *storage.CorpusStats) {
	rows := [][2]string{
		{"cities", strconv.Itoa(stats.Cities)},
		{"meetings", strconv.Itoa(stats.Meetings)},
		{"meetings completed", strconv.Itoa(stats.MeetingsCompleted)},
		{"agenda items", strconv.Itoa(stats.Items)},
		{"items summarized", strconv.Itoa(stats.ItemsSummarized)},
		{"matters", strconv.Itoa(stats.Matters)},
		{"matter appearances", strconv.Itoa(stats.Appearances)},
		{"queue pending", strconv.Itoa(stats.Queue.Pending)},
		{"queue processing", strconv.Itoa(stats.Queue.Processing)},
		{"queue completed", strconv.Itoa(stats.Queue.Completed)},
		{"queue failed", strconv.Itoa(stats.Queue.Failed)},
		{"queue dead letter", strconv.Itoa(stats.Queue.DeadLetter)},
	}

	if plainOutput() {
		for _, r := range rows {
			fmt.Printf("%s\t%s\n", r[0], r[1])
		}
		return
	}

	t := newTable("METRIC", "COUNT")
	for _, r := range rows {
		t.Row(r[0], r[1])
	}
	fmt.Println(t.Render())
}
