package types

import "time"

// BaseJobPriority anchors the enqueue priority scale. Retry demotions
// subtract from it; imminent meetings stay near the top.
const BaseJobPriority = 100

// JobPriority computes the enqueue priority for a meeting from its date:
// base minus max(0, days until the meeting). A meeting today or already
// past keeps the full base; one two weeks out sits 14 below it. Higher
// runs first.
func JobPriority(meetingDate, now time.Time) int {
	days := int(meetingDate.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return BaseJobPriority - days
}
