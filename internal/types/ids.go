package types

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Banana builds the vendor-agnostic city key: lowercase city name with
// non-alphanumerics stripped, followed by the uppercase two-letter state
// code. "Palo Alto", "ca" -> "paloaltoCA".
func Banana(name, state string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String() + strings.ToUpper(strings.TrimSpace(state))
}

// MeetingID derives the deterministic meeting identifier:
// {banana}_{first 8 hex chars of md5(banana:vendor_id:date:title)}.
// The date participates with its time component zeroed so that vendors
// that report times inconsistently still hash stably.
func MeetingID(banana, vendorID string, date time.Time, title string) string {
	day := date.Format("2006-01-02")
	sum := md5.Sum([]byte(banana + ":" + vendorID + ":" + day + ":" + title))
	return banana + "_" + hex.EncodeToString(sum[:])[:8]
}

// ItemID derives an agenda item identifier from its meeting and either the
// vendor's item id or, when the vendor has none, the item sequence.
func ItemID(meetingID, vendorItemID string, sequence int) string {
	suffix := vendorItemID
	if suffix == "" {
		suffix = fmt.Sprintf("seq%d", sequence)
	}
	return meetingID + "_" + suffix
}

// MatterIdentity picks the identity string for a matter using the fallback
// hierarchy: matter_file if present, else the vendor matter id, else the
// normalized title. Returns "" when no identity can be derived (the item
// then tracks no matter).
func MatterIdentity(matterFile, vendorMatterID, title string) string {
	if f := strings.TrimSpace(matterFile); f != "" {
		return "file:" + f
	}
	if id := strings.TrimSpace(vendorMatterID); id != "" {
		return "vendor:" + id
	}
	if t := NormalizeTitle(title); t != "" {
		return "title:" + t
	}
	return ""
}

// MatterID derives the canonical matter identifier:
// {banana}_{first 16 hex chars of sha256(banana:identity)}.
// The banana participates in the hash, so equal matter files in different
// cities map to different matters.
func MatterID(banana, identity string) string {
	sum := sha256.Sum256([]byte(banana + ":" + identity))
	return banana + "_" + hex.EncodeToString(sum[:])[:16]
}

var titleWS = regexp.MustCompile(`\s+`)

// NormalizeTitle lowercases a title and collapses whitespace and
// punctuation so near-identical titles hash identically. Used only for
// vendors that expose neither matter_file nor matter_id.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return titleWS.ReplaceAllString(strings.TrimSpace(b.String()), " ")
}

// AttachmentHash is the sha256 over the ordered attachment URLs, used to
// detect attachment-set changes between syncs without comparing blobs.
func AttachmentHash(attachments []Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	h := sha256.New()
	for _, a := range attachments {
		h.Write([]byte(a.URL))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ItemsURL is the sentinel queue source URL for item-level meeting jobs.
// The processor resolves it back to the meeting's stored agenda items; the
// HTML agenda_url itself is never enqueued.
func ItemsURL(meetingID string) string {
	return "items://" + meetingID
}
