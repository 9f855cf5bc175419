// Package types defines the core data model: cities, meetings, agenda
// items, legislative matters, matter appearances, and queue jobs.
//
// All entities carry deterministic identifiers (see ids.go) so that
// repeated vendor syncs upsert rather than duplicate.
package types

import "time"

// Vendor identifies the agenda-management platform a city publishes on.
type Vendor string

const (
	VendorLegistar    Vendor = "legistar"
	VendorPrimeGov    Vendor = "primegov"
	VendorGranicus    Vendor = "granicus"
	VendorCivicClerk  Vendor = "civicclerk"
	VendorNovusAgenda Vendor = "novusagenda"
	VendorCivicPlus   Vendor = "civicplus"
	VendorCustom      Vendor = "custom"
)

// Vendors lists every supported vendor, in registry order.
var Vendors = []Vendor{
	VendorLegistar, VendorPrimeGov, VendorGranicus,
	VendorCivicClerk, VendorNovusAgenda, VendorCivicPlus, VendorCustom,
}

// Valid reports whether v names a supported vendor.
func (v Vendor) Valid() bool {
	for _, known := range Vendors {
		if v == known {
			return true
		}
	}
	return false
}

// ProcessingStatus tracks a meeting's progress through the LLM pipeline.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// MatterStatus is the lifecycle state of a legislative matter.
type MatterStatus string

const (
	MatterActive    MatterStatus = "active"
	MatterPassed    MatterStatus = "passed"
	MatterFailed    MatterStatus = "failed"
	MatterTabled    MatterStatus = "tabled"
	MatterWithdrawn MatterStatus = "withdrawn"
	MatterReferred  MatterStatus = "referred"
	MatterAmended   MatterStatus = "amended"
	MatterVetoed    MatterStatus = "vetoed"
	MatterEnacted   MatterStatus = "enacted"
)

// Terminal reports whether the status ends the matter's lifecycle.
// Once terminal, last_seen no longer advances automatically.
func (s MatterStatus) Terminal() bool {
	switch s {
	case MatterPassed, MatterFailed, MatterTabled, MatterWithdrawn, MatterVetoed, MatterEnacted:
		return true
	}
	return false
}

// VoteOutcome records how a matter fared at a single appearance.
type VoteOutcome string

const (
	VotePassed    VoteOutcome = "passed"
	VoteFailed    VoteOutcome = "failed"
	VoteTabled    VoteOutcome = "tabled"
	VoteWithdrawn VoteOutcome = "withdrawn"
	VoteReferred  VoteOutcome = "referred"
	VoteAmended   VoteOutcome = "amended"
	VoteUnknown   VoteOutcome = "unknown"
	VoteNone      VoteOutcome = "no_vote"
)

// TerminalStatus maps a vote outcome to the matter status it finalizes,
// or "" when the outcome leaves the matter active.
func (o VoteOutcome) TerminalStatus() MatterStatus {
	switch o {
	case VotePassed:
		return MatterPassed
	case VoteFailed:
		return MatterFailed
	case VoteTabled:
		return MatterTabled
	case VoteWithdrawn:
		return MatterWithdrawn
	}
	return ""
}

// City is a municipality tracked by the system. The primary key ("banana")
// is the lowercase city name concatenated with the two-letter state code,
// e.g. "paloaltoCA". Cities are seeded administratively and never deleted
// while meetings reference them.
type City struct {
	Banana    string    `json:"banana"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Vendor    Vendor    `json:"vendor"`
	Slug      string    `json:"slug"`
	County    string    `json:"county,omitempty"`
	Status    string    `json:"status,omitempty"`
	Zipcodes  []Zipcode `json:"zipcodes,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Zipcode associates a postal code with a city.
type Zipcode struct {
	Banana  string `json:"banana"`
	Zipcode string `json:"zipcode"`
	Primary bool   `json:"is_primary"`
}

// Meeting is one agenda-bearing event of a city's government.
type Meeting struct {
	ID     string    `json:"id"`
	Banana string    `json:"banana"`
	Title  string    `json:"title"`
	Date   time.Time `json:"date"`

	// VendorID is the vendor's own identifier for this meeting, kept for
	// detail fetches. It participates in the meeting ID hash.
	VendorID string `json:"vendor_id,omitempty"`

	AgendaURL     string   `json:"agenda_url,omitempty"`
	PacketURL     string   `json:"packet_url,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Participation string   `json:"participation,omitempty"` // opaque JSON blob

	// Status is the vendor-reported meeting status: cancelled, postponed,
	// revised, rescheduled, or empty.
	Status string `json:"status,omitempty"`

	ProcessingStatus ProcessingStatus `json:"processing_status,omitempty"`
	ProcessingMethod string           `json:"processing_method,omitempty"`
	ProcessingTime   float64          `json:"processing_time,omitempty"` // seconds

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Attachment is one document hanging off an agenda item. Type defaults to
// "pdf" when the vendor does not report one, so the processor never
// silently skips a document.
type Attachment struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Pages int    `json:"pages,omitempty"`
}

// AgendaItem is a single numbered entry on a meeting agenda.
type AgendaItem struct {
	ID        string `json:"id"` // {meeting_id}_{suffix}
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
	Sequence  int    `json:"sequence"`

	// VendorItemID is the vendor's own identifier for this agenda entry.
	// It keys the item ID suffix, so two entries of one meeting stay
	// distinct even when they reference the same matter (a hearing and
	// its action item, say). Vendors without one fall back to sequence.
	VendorItemID string `json:"vendor_item_id,omitempty"`

	Attachments    []Attachment `json:"attachments,omitempty"`
	AttachmentHash string       `json:"attachment_hash,omitempty"`

	// MatterID is the canonical city_matters key, filled in by the matter
	// tracker. MatterFile/VendorMatterID are the raw vendor-reported
	// identity fields the canonical key is derived from.
	MatterID       string `json:"matter_id,omitempty"`
	MatterFile     string `json:"matter_file,omitempty"`
	VendorMatterID string `json:"vendor_matter_id,omitempty"`
	MatterType     string `json:"matter_type,omitempty"`

	AgendaNumber string   `json:"agenda_number,omitempty"`
	Sponsors     []string `json:"sponsors,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Topics       []string `json:"topics,omitempty"`

	// Procedural marks roll calls, minutes approvals and similar
	// no-content entries. Stored for completeness, never summarized.
	Procedural bool `json:"procedural,omitempty"`

	// VoteOutcome and VoteTally carry the vendor-reported action taken on
	// this item, where the vendor exposes one (Legistar). Sync records
	// them on the item's matter appearance.
	VoteOutcome VoteOutcome `json:"vote_outcome,omitempty"`
	VoteTally   *VoteTally  `json:"vote_tally,omitempty"`
}

// Matter is a legislative object (bill, ordinance, resolution) tracked
// across every meeting it appears in.
type Matter struct {
	ID     string `json:"id"` // {banana}_{16 hex of sha256(banana:identity)}
	Banana string `json:"banana"`

	// At least one of MatterFile / VendorMatterID is set. MatterFile (the
	// clerk-assigned public file number, e.g. "BL2025-1098") dominates the
	// vendor UUID when both are present.
	MatterFile     string `json:"matter_file,omitempty"`
	VendorMatterID string `json:"vendor_matter_id,omitempty"`

	Type     string   `json:"matter_type,omitempty"`
	Title    string   `json:"title"`
	Sponsors []string `json:"sponsors,omitempty"`

	CanonicalSummary string   `json:"canonical_summary,omitempty"`
	CanonicalTopics  []string `json:"canonical_topics,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	FirstSeen       time.Time    `json:"first_seen"`
	LastSeen        time.Time    `json:"last_seen"`
	AppearanceCount int          `json:"appearance_count"`
	Status          MatterStatus `json:"status"`
	FinalVoteDate   *time.Time   `json:"final_vote_date,omitempty"`
}

// VoteTally is the recorded vote breakdown at one appearance.
type VoteTally struct {
	Yes     int `json:"yes"`
	No      int `json:"no"`
	Abstain int `json:"abstain"`
	Absent  int `json:"absent"`
}

// MatterAppearance is the junction row recording one occurrence of a
// matter on a meeting agenda. Unique on (matter_id, meeting_id, item_id).
type MatterAppearance struct {
	ID         int64       `json:"id"`
	MatterID   string      `json:"matter_id"`
	MeetingID  string      `json:"meeting_id"`
	ItemID     string      `json:"item_id"`
	AppearedAt time.Time   `json:"appeared_at"`
	Committee  string      `json:"committee,omitempty"`
	Outcome    VoteOutcome `json:"vote_outcome,omitempty"`
	Tally      *VoteTally  `json:"vote_tally,omitempty"`
	Sequence   int         `json:"sequence"`
}

// JobType distinguishes queue payloads.
type JobType string

const (
	JobMeeting JobType = "meeting"
	JobMatter  JobType = "matter"
)

// JobStatus is the queue lifecycle state of a job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobDeadLetter JobStatus = "dead_letter"
)

// Live reports whether the job still occupies its source_url slot.
// At most one live row may exist per source_url.
func (s JobStatus) Live() bool {
	return s == JobPending || s == JobProcessing
}

// QueueJob is one durable unit of processing work.
type QueueJob struct {
	ID        int64   `json:"id"`
	SourceURL string  `json:"source_url"`
	JobType   JobType `json:"job_type"`
	Payload   string  `json:"payload,omitempty"` // JSON blob
	MeetingID string  `json:"meeting_id,omitempty"`
	Banana    string  `json:"banana,omitempty"`

	Status     JobStatus `json:"status"`
	Priority   int       `json:"priority"`
	RetryCount int       `json:"retry_count"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	ErrorMessage       string `json:"error_message,omitempty"`
	ProcessingMetadata string `json:"processing_metadata,omitempty"`
}
