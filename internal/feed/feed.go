// Package feed retrieves RSS/Atom feeds and normalizes their entries.
//
// The upstream feeds carry host-specific extension elements with unstable
// spellings (featuredImage vs featuredimage, chaptername vs chapter). All
// of that is resolved here, exactly once, into a fixed Entry record; no
// other package looks at raw feed items.
package feed

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Entry is one normalized feed item.
type Entry struct {
	GUID        string
	Title       string // novel title, used for routing and matching
	Host        string // hosting site name, used for filtering
	ChapterName string
	NameExtend  string
	Volume      string
	Link        string
	Published   time.Time // zero when the feed gave no usable timestamp
	Description string    // raw HTML blurb
	Category    string
	Author      string
	ReplyChain  string
	Coin        string
	Thumbnail   string
	HostLogo    string
	Translator  string
	ShortCode   string
}

// Fetch retrieves and parses a feed, returning entries ordered
// oldest to newest. Entries without a usable dedup id are dropped.
func Fetch(url string) ([]Entry, error) {
	parsed, err := gofeed.NewParser().ParseURL(url)
	if err != nil {
		return nil, err
	}
	return normalizeAll(parsed.Items), nil
}

// normalizeAll maps raw items to entries, reversing the feed's natural
// newest-first order into chronological order.
func normalizeAll(items []*gofeed.Item) []Entry {
	entries := make([]Entry, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		e := Normalize(items[i])
		if e.GUID == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// Normalize maps one raw feed item into an Entry, resolving every
// alternative field spelling.
func Normalize(item *gofeed.Item) Entry {
	e := Entry{
		GUID:        strings.TrimSpace(item.GUID),
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Description: item.Description,
		Host:        custom(item, "host", "Host", "HOST"),
		ChapterName: custom(item, "chaptername", "chapter"),
		NameExtend:  custom(item, "nameextend"),
		Volume:      custom(item, "volume"),
		ReplyChain:  custom(item, "reply_chain"),
		Coin:        custom(item, "coin"),
		Thumbnail:   custom(item, "featuredImage", "featuredimage"),
		HostLogo:    custom(item, "hostLogo", "hostlogo"),
		Translator:  custom(item, "translator"),
		ShortCode:   custom(item, "short_code", "shortcode"),
	}
	if e.GUID == "" && e.Link != "" {
		e.GUID = e.Link
	}
	if len(item.Categories) > 0 {
		e.Category = strings.Join(item.Categories, ", ")
	}
	if item.Author != nil {
		e.Author = strings.TrimSpace(item.Author.Name)
	}
	if e.Author == "" && item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		e.Author = strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}
	if item.PublishedParsed != nil {
		e.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		e.Published = *item.UpdatedParsed
	}

	// NBSPs leak into chapter labels and break the arc/extras regexes.
	e.ChapterName = cleanSpace(e.ChapterName)
	e.NameExtend = cleanSpace(e.NameExtend)
	e.Volume = cleanSpace(e.Volume)
	return e
}

// custom returns the first non-empty custom element among the given
// spellings.
func custom(item *gofeed.Item, names ...string) string {
	for _, name := range names {
		if v, ok := item.Custom[name]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func cleanSpace(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, " ", " "))
}

// MatchesHost reports whether the entry belongs to the given hosting
// site, compared case-insensitively.
func (e Entry) MatchesHost(host string) bool {
	return strings.EqualFold(strings.TrimSpace(e.Host), strings.TrimSpace(host))
}

// IsNSFW reports whether the entry's category tags it as NSFW.
func (e Entry) IsNSFW() bool {
	return strings.Contains(strings.ToLower(e.Category), "nsfw")
}
