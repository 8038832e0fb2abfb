package track

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
)

// CompletionKind names the three mutually independent one-shot
// completion flags.
type CompletionKind int

const (
	// PaidCompletion fires when the paid feed reaches the final chapter.
	PaidCompletion CompletionKind = iota
	// FreeCompletion fires when the free feed of a series that also has a
	// paid feed reaches the final chapter.
	FreeCompletion
	// OnlyFreeCompletion fires for series with no paid feed at all.
	OnlyFreeCompletion
)

// KindFor maps a feed type to the completion flag it may set. A free
// feed's flag depends on whether the series also has a paid feed.
func KindFor(feedType string, hasPaidFeed bool) CompletionKind {
	if feedType == "paid" {
		return PaidCompletion
	}
	if hasPaidFeed {
		return FreeCompletion
	}
	return OnlyFreeCompletion
}

// Announced reports whether the flag is already set for a novel.
func (k CompletionKind) Announced(meta *state.NovelMeta) bool {
	switch k {
	case PaidCompletion:
		return meta.PaidCompletion != nil
	case FreeCompletion:
		return meta.FreeCompletion != nil
	default:
		return meta.OnlyFreeCompletion != nil
	}
}

// Record sets the flag. Called only after confirmed delivery; once set,
// it is permanent.
func (k CompletionKind) Record(meta *state.NovelMeta, mark *state.Mark) {
	switch k {
	case PaidCompletion:
		meta.PaidCompletion = mark
	case FreeCompletion:
		meta.FreeCompletion = mark
	default:
		meta.OnlyFreeCompletion = mark
	}
}

// FindFinalChapter returns the first entry whose chapter label contains
// the novel's configured last-chapter marker.
func FindFinalChapter(entries []feed.Entry, lastChapter string) (feed.Entry, bool) {
	if lastChapter == "" {
		return feed.Entry{}, false
	}
	for _, e := range entries {
		if strings.Contains(e.ChapterName, lastChapter) {
			return e, true
		}
	}
	return feed.Entry{}, false
}

// DurationSince renders the time between a configured start date
// (DD/MM/YYYY) and an end timestamp as a human phrase: "a year and
// 2 months", "more than 3 weeks", "less than a week". The "more than"
// prefix appears whenever leftover days remain below the stated
// granularity.
func DurationSince(startDate string, end time.Time) (string, error) {
	start, err := parseStartDate(startDate)
	if err != nil {
		return "", err
	}
	years, months, days := calendarDiff(start, end)

	switch {
	case years > 0 && months > 0:
		phrase := countNoun(years, "year") + " and " + countNoun(months, "month")
		if days > 0 {
			return "more than " + phrase, nil
		}
		return phrase, nil
	case years > 0:
		if days > 0 {
			return "more than " + countNoun(years, "year"), nil
		}
		return countNoun(years, "year"), nil
	case months > 0:
		if days > 0 {
			return "more than " + countNoun(months, "month"), nil
		}
		return countNoun(months, "month"), nil
	}

	weeks, rem := days/7, days%7
	switch {
	case weeks > 0 && rem > 0:
		return fmt.Sprintf("more than %s", plural(weeks, "week")), nil
	case weeks > 0:
		return plural(weeks, "week"), nil
	case rem > 0:
		return "more than a week", nil
	}
	return "less than a week", nil
}

func parseStartDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("start date %q: want DD/MM/YYYY", s)
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("start date %q: want DD/MM/YYYY", s)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// calendarDiff returns whole calendar years, months, and leftover days
// between start and end.
func calendarDiff(start, end time.Time) (years, months, days int) {
	years = end.Year() - start.Year()
	months = int(end.Month()) - int(start.Month())
	days = end.Day() - start.Day()
	if days < 0 {
		months--
		// Borrow the length of the month preceding end.
		prev := time.Date(end.Year(), end.Month(), 0, 0, 0, 0, 0, time.UTC)
		days += prev.Day()
	}
	if months < 0 {
		years--
		months += 12
	}
	return years, months, days
}

// countNoun renders "a year", "2 years", "a month", "3 months".
func countNoun(n int, noun string) string {
	if n == 1 {
		return "a " + noun
	}
	return plural(n, noun)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
