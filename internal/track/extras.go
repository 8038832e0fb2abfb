package track

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cannibal-turtle/mistmint-bot/internal/config"
	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
)

var (
	extraIndexRe = regexp.MustCompile(`(?i)\bextras?\b\D*?(\d+)`)
	ssIndexRe    = regexp.MustCompile(`(?i)\bside\s+stor(?:y|ies)\b\D*?(\d+)`)

	totalExtrasRe = regexp.MustCompile(`(?i)(\d+)\s*extras?`)
	totalSSRe     = regexp.MustCompile(`(?i)(\d+)\s*(?:side story|side stories)`)
)

// MaxExtraIndex returns the highest "extra N" index mentioned across the
// chapter, extension, and volume labels of the entries, or 0.
func MaxExtraIndex(entries []feed.Entry) int { return maxIndex(entries, extraIndexRe) }

// MaxSideStoryIndex returns the highest "side story N" index, or 0.
func MaxSideStoryIndex(entries []feed.Entry) int { return maxIndex(entries, ssIndexRe) }

func maxIndex(entries []feed.Entry, re *regexp.Regexp) int {
	max := 0
	for _, e := range entries {
		for _, field := range []string{e.ChapterName, e.NameExtend, e.Volume} {
			m := re.FindStringSubmatch(field)
			if m == nil {
				continue
			}
			if n, _ := strconv.Atoi(m[1]); n > max {
				max = n
			}
		}
	}
	return max
}

// ExtrasDecision is the outcome of the extras detector for one novel.
type ExtrasDecision struct {
	Announce bool

	// Current is the highest extra/side-story index observed; recorded
	// into last_extra_announced on confirmed delivery.
	Current int

	MaxExtras, MaxSS     int  // highest index per keyword group
	NewExtras, NewSS     bool // which groups are newly present
	TotalExtras, TotalSS int  // configured totals from chapter_count
}

// AllExtrasOut reports whether every configured extra has been seen.
func (d ExtrasDecision) AllExtrasOut() bool {
	return d.TotalExtras > 0 && d.MaxExtras >= d.TotalExtras
}

// AllSSOut reports whether every configured side story has been seen.
func (d ExtrasDecision) AllSSOut() bool {
	return d.TotalSS > 0 && d.MaxSS >= d.TotalSS
}

// Extras decides whether a novel's paid feed warrants the one-time extras
// announcement. Skip conditions, in order: the feed already contains the
// configured final chapter (the completion flow owns that moment), any
// completion was already announced, or the lifetime latch is set.
// Otherwise an announcement is due only when the observed index climbed
// past last_extra_announced.
func Extras(meta *state.NovelMeta, novel config.Novel, paid []feed.Entry) ExtrasDecision {
	var d ExtrasDecision

	if novel.LastChapter != "" {
		for _, e := range paid {
			if strings.Contains(e.ChapterName+e.NameExtend, novel.LastChapter) {
				return d
			}
		}
	}
	if meta.Completed() || meta.ExtraAnnounced {
		return d
	}

	d.MaxExtras = MaxExtraIndex(paid)
	d.MaxSS = MaxSideStoryIndex(paid)
	d.Current = d.MaxExtras
	if d.MaxSS > d.Current {
		d.Current = d.MaxSS
	}

	last := meta.LastExtraAnnounced
	if d.Current <= last {
		return d
	}

	d.NewExtras = d.MaxExtras > last
	d.NewSS = d.MaxSS > last
	d.TotalExtras, d.TotalSS = totals(novel.ChapterCount)
	d.Announce = true
	return d
}

// totals parses "… + 5 extras + 2 side stories" style chapter counts.
func totals(chapterCount string) (extras, ss int) {
	if m := totalExtrasRe.FindStringSubmatch(chapterCount); m != nil {
		extras, _ = strconv.Atoi(m[1])
	}
	if m := totalSSRe.FindStringSubmatch(chapterCount); m != nil {
		ss, _ = strconv.Atoi(m[1])
	}
	return extras, ss
}
