package llm

import (
	"fmt"
	"strings"
)

// largeItemPageThreshold switches an item to the large-item prompt, which
// asks for a longer summary of what is usually a full ordinance text.
const largeItemPageThreshold = 100

const promptPreamble = `You are summarizing a local-government agenda item for residents.
Write plainly. Name concrete effects: money amounts, addresses, dates, who is affected.
Do not editorialize. Respond with a single JSON object:
{"summary": "...", "topics": ["...", "..."]}
Topics are 1-3 lowercase tags like "housing", "transit", "budget", "public safety".`

const standardInstructions = `Summarize in 2-4 sentences what this item does and why a resident might care.`

const largeItemInstructions = `This is a long legislative document. Summarize in up to 8 sentences:
what it enacts, the key sections, money amounts, and who is affected.`

const monolithicInstructions = `This is a full meeting agenda packet. Summarize the meeting in up to 10 sentences,
leading with the items most likely to affect residents. Topics should cover the whole meeting.`

// ItemPrompt builds the per-item request body. pages is the item's total
// attachment page count and selects the standard or large-item variant.
func ItemPrompt(title, text string, pages int) string {
	instructions := standardInstructions
	if pages >= largeItemPageThreshold {
		instructions = largeItemInstructions
	}

	var sb strings.Builder
	sb.WriteString(promptPreamble)
	sb.WriteString("\n\n")
	sb.WriteString(instructions)
	sb.WriteString("\n\nAgenda item title: ")
	sb.WriteString(title)
	if text != "" {
		sb.WriteString("\n\nItem documents:\n")
		sb.WriteString(text)
	} else {
		sb.WriteString("\n\n(The item has no documents of its own; rely on the shared meeting context.)")
	}
	return sb.String()
}

// MonolithicPrompt builds the whole-packet request used when a meeting
// has no item decomposition.
func MonolithicPrompt(meetingTitle, packetText string) string {
	return fmt.Sprintf("%s\n\n%s\n\nMeeting: %s\n\nAgenda packet:\n%s",
		promptPreamble, monolithicInstructions, meetingTitle, packetText)
}

// ContextPreamble frames the shared meeting documents when they are
// cached or inlined as system context.
func ContextPreamble(meetingTitle string) string {
	return fmt.Sprintf("Shared documents for the meeting %q. Individual agenda items below reference this material.", meetingTitle)
}
