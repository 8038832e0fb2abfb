package track

import (
	"regexp"

	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
)

var firstChapterRes = []*regexp.Regexp{
	// ch 1 / chapter 1 / Chapter 001 / Ch.01
	regexp.MustCompile(`(?i)\bch(?:apter)?\.?\s*0*1\b`),
	// ep 1 / episode 1 / Ep.01
	regexp.MustCompile(`(?i)\bep(?:isode)?\.?\s*0*1\b`),
	regexp.MustCompile(`(?i)prologue`),
	// 1.1 / 1．1 / 1.01, but not 21.1 or 10.1
	regexp.MustCompile(`\b1[．.]\s*0*1\b`),
}

// IsFirstChapter reports whether a chapter label means "this is the
// first public drop": chapter/episode one, a prologue, or a 1.1-style
// arc-part label.
func IsFirstChapter(chapter string) bool {
	if chapter == "" {
		return false
	}
	for _, re := range firstChapterRes {
		if re.MatchString(chapter) {
			return true
		}
	}
	return false
}

// FindLaunch returns the novel's first-chapter entry from its free feed,
// if one is present.
func FindLaunch(entries []feed.Entry, novelTitle string) (feed.Entry, bool) {
	for _, e := range entries {
		if e.Title != novelTitle {
			continue
		}
		if IsFirstChapter(e.ChapterName) {
			return e, true
		}
	}
	return feed.Entry{}, false
}
