// Package track holds the per-novel state machines: arc tracking,
// extras/side-story detection, completion detection, and launch
// detection. Everything here is pure decision logic over durable state
// and normalized feed entries; the pipelines do the I/O.
package track

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
)

var (
	arcLabelRe = regexp.MustCompile(`【Arc\s*(\d+)】`)

	// "first chapter of an arc" markers: a trailing 001, (1) or .1,
	// optionally wrapped in decorative asterisks.
	newMarkerRe = regexp.MustCompile(`(001|\(1\)|\.\s*1)(\*+)?\s*$`)

	// Arc-ish volume labels: "Arc 3", "World 12", "Vol 2"...
	volumeLabelRe = regexp.MustCompile(`(?i)^(arc|world|plane|story|volume|vol|v)\s*\d+`)

	// A bare "N.M" extension, e.g. "3.1".
	decimalExtendRe = regexp.MustCompile(`^\**\s*\d+\.\d+\s*\**$`)

	// Trailing first-sub-chapter decoration stripped from extensions.
	extendSuffixRe = regexp.MustCompile(`(?:\s+001|\(1\)|\.\s*1)$`)

	// Leading numeric prefix (with trailing punctuation) of an arc name.
	numberPrefixRe = regexp.MustCompile(`^.*?\d+[^\w\s]*\s*`)
)

// ArcNumber extracts the number from a "【Arc N】..." label, or 0.
func ArcNumber(label string) int {
	m := arcLabelRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// NextArcNumber allocates the next arc number for a history: the number
// after last_announced when set, else one past the highest number on
// record, else 1. Numbers are monotonically increasing and assigned
// exactly once.
func NextArcNumber(h *state.ArcHistory) int {
	if n := ArcNumber(h.LastAnnounced); n > 0 {
		return n + 1
	}
	max := 0
	for _, label := range append(append([]string{}, h.Unlocked...), h.Locked...) {
		if n := ArcNumber(label); n > max {
			max = n
		}
	}
	return max + 1
}

// IsArcStart reports whether an entry's volume/chapter/extension labels
// mark the first chapter of a new arc: either an explicit first-sub-
// chapter marker, or an arc-ish volume label (with or without a bare
// "N.M" extension).
func IsArcStart(volume, chapter, extend string) bool {
	volume, chapter, extend = strings.TrimSpace(volume), strings.TrimSpace(chapter), strings.TrimSpace(extend)
	if newMarkerRe.MatchString(extend) || newMarkerRe.MatchString(chapter) {
		return true
	}
	if !volumeLabelRe.MatchString(volume) {
		return false
	}
	// A decimal extension like "3.1" confirms the start; so does an
	// arc-ish volume with no sub-chapter marker at all.
	return decimalExtendRe.MatchString(extend) || !newMarkerRe.MatchString(extend)
}

// ArcBase derives the arc's base name from whichever label carries it,
// stripping decorations and any leading numeric prefix.
func ArcBase(volume, chapter, extend string) string {
	var base string
	switch {
	case strings.TrimSpace(volume) != "":
		base = strings.TrimSpace(strings.ReplaceAll(volume, "*", ""))
	case strings.TrimSpace(extend) != "":
		base = strings.TrimSpace(strings.Trim(extend, "* "))
		base = strings.TrimSpace(extendSuffixRe.ReplaceAllString(base, ""))
	default:
		base = strings.TrimSpace(chapter)
	}
	return numberPrefixRe.ReplaceAllString(base, "")
}

// NewArcBases scans a novel's feed entries for start-of-arc chapters
// and returns their base names in feed order.
func NewArcBases(entries []feed.Entry, novelTitle string) []string {
	var bases []string
	for _, e := range entries {
		if e.Title != novelTitle {
			continue
		}
		if !IsArcStart(e.Volume, e.ChapterName, e.NameExtend) {
			continue
		}
		bases = append(bases, ArcBase(e.Volume, e.ChapterName, e.NameExtend))
	}
	return bases
}

// ArcUpdate is the outcome of reconciling a history with freshly
// observed arc starts.
type ArcUpdate struct {
	Changed  bool   // history was modified and must be persisted
	Announce bool   // a new locked arc is due for announcement
	NewArc   string // the label to record as announced on confirmed delivery
}

// Arcs reconciles one novel's arc history with the arc-start base names
// seen in its free and paid feeds.
//
// Free-feed starts unlock a matching locked arc, or create a brand-new
// unlocked arc for a never-seen base. Paid-feed starts create locked
// arcs for never-seen bases. An arc never moves back from unlocked to
// locked. On a true first run the newest locked label is recorded as
// already announced, so creating history never triggers a backfill
// announcement; the same suppression covers a first arc that exists
// only on the free side.
func Arcs(h *state.ArcHistory, freeBases, paidBases []string) ArcUpdate {
	var up ArcUpdate
	firstRun := h.Empty()
	var freeCreated, paidCreated bool

	for _, base := range freeBases {
		if unlockMatching(h, base) {
			up.Changed = true
			continue
		}
		if seenBase(h, base) {
			continue
		}
		h.Unlocked = append(h.Unlocked, arcLabel(NextArcNumber(h), base))
		freeCreated, up.Changed = true, true
	}

	for _, base := range paidBases {
		if seenBase(h, base) {
			continue
		}
		h.Locked = append(h.Locked, arcLabel(NextArcNumber(h), base))
		paidCreated, up.Changed = true, true
	}

	h.Unlocked = dedupe(h.Unlocked)
	h.Locked = dedupe(h.Locked)

	// Bootstrap: first-ever history just records numbering, silently.
	if firstRun && (freeCreated || paidCreated) {
		if len(h.Locked) > 0 {
			h.LastAnnounced = h.Locked[len(h.Locked)-1]
		}
		return up
	}

	// First arc started free with nothing locked: numbering only.
	if freeCreated && !paidCreated && len(h.Locked) == 0 {
		return up
	}

	if len(h.Locked) == 0 {
		return up
	}
	newest := h.Locked[len(h.Locked)-1]
	if newest == h.LastAnnounced {
		return up
	}
	up.Announce = true
	up.NewArc = newest
	return up
}

// unlockMatching moves the locked arc whose name ends with base into the
// unlocked list. Reports whether a move happened.
func unlockMatching(h *state.ArcHistory, base string) bool {
	for i, full := range h.Locked {
		if !strings.HasSuffix(full, base) {
			continue
		}
		h.Locked = append(h.Locked[:i], h.Locked[i+1:]...)
		if !contains(h.Unlocked, full) {
			h.Unlocked = append(h.Unlocked, full)
		}
		return true
	}
	return false
}

// seenBase reports whether base already exists in either list, ignoring
// the "【Arc N】" prefix. This is the guard that keeps an unlocked arc
// from ever being re-created as locked.
func seenBase(h *state.ArcHistory, base string) bool {
	for _, label := range append(append([]string{}, h.Unlocked...), h.Locked...) {
		if arcLabelRe.ReplaceAllString(label, "") == base {
			return true
		}
	}
	return false
}

func arcLabel(n int, base string) string {
	return "【Arc " + strconv.Itoa(n) + "】" + base
}

func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := labels[:0]
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func contains(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
