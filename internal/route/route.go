// Package route decides which feed entries are new and where they go.
//
// It owns the checkpoint slicing ("everything strictly after the last
// seen id"), the target-host filter, and the short-code based resolution
// of per-novel thread destinations.
package route

import (
	"log"
	"regexp"
	"strings"

	"github.com/cannibal-turtle/mistmint-bot/internal/config"
	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/sender"
)

var (
	nonAlnum   = regexp.MustCompile(`[^A-Z0-9]+`)
	guidPrefix = regexp.MustCompile(`(?i)^([a-z0-9_]+)-`)
)

// ShortCode derives a compact uppercase identifier from a novel title:
// upper-case, every run of non-alphanumerics collapsed to one underscore,
// leading/trailing underscores trimmed. Deterministic and pure.
func ShortCode(title string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToUpper(title), "_"), "_")
}

// SelectUnseen returns the entries strictly after lastGUID in the given
// chronological sequence. When lastGUID is empty or absent from the
// sequence (first run, or the checkpoint scrolled out of the feed
// window), the whole sequence is returned: the catch-up policy favors
// re-delivery over silent gaps.
func SelectUnseen(entries []feed.Entry, lastGUID string) []feed.Entry {
	if lastGUID == "" {
		return entries
	}
	for i, e := range entries {
		if e.GUID == lastGUID {
			return entries[i+1:]
		}
	}
	return entries
}

// FilterHost keeps only entries from the given hosting site. Applied
// before checkpoint slicing, so foreign-host entries never advance or
// block the cursor.
func FilterHost(entries []feed.Entry, host string) []feed.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.MatchesHost(host) {
			out = append(out, e)
		}
	}
	return out
}

// Resolver maps (host, novel title) to a destination thread id.
//
// Resolution order: explicit short_code from the mapping table (else
// derived from the title) → "<SHORTCODE>_THREAD_ID" in the environment
// snapshot → locally cached id → optional on-demand thread creation.
// Failure to resolve is a skip for the item, never a run abort.
type Resolver struct {
	cfg *config.Config
	env *config.Env

	// Threads caches resolved destination ids by short-code. It aliases
	// the checkpoint document's cache, so saves persist it.
	Threads map[string]string

	// Creator enables on-demand thread creation when the env snapshot has
	// Autocreate set and a parent channel is configured.
	Creator sender.Creator

	// cached marks short-codes whose last resolution used only the local
	// cache, so Invalidate knows which ids are safe to drop.
	cached map[string]bool
}

// NewResolver builds a Resolver over the mapping table, the environment
// snapshot, and the persisted thread cache.
func NewResolver(cfg *config.Config, env *config.Env, threads map[string]string) *Resolver {
	if threads == nil {
		threads = make(map[string]string)
	}
	return &Resolver{cfg: cfg, env: env, Threads: threads, cached: make(map[string]bool)}
}

// Resolve returns the destination id for a novel, or ok=false when no
// route exists.
func (r *Resolver) Resolve(host, title string) (string, bool) {
	return r.resolve(shortCodeFor(r.cfg, host, title), title)
}

// ResolveEntry resolves a destination for a feed entry, additionally
// honoring an entry-level short_code field and a short-code guid prefix
// (paid chapter guids look like "tdlb-0042").
func (r *Resolver) ResolveEntry(e feed.Entry) (string, bool) {
	return r.resolve(r.entryCode(e), e.Title)
}

func (r *Resolver) entryCode(e feed.Entry) string {
	sc := strings.ToUpper(strings.TrimSpace(e.ShortCode))
	if sc == "" {
		if m := guidPrefix.FindStringSubmatch(e.GUID); m != nil {
			sc = strings.ToUpper(m[1])
		}
	}
	if sc == "" {
		sc = shortCodeFor(r.cfg, e.Host, e.Title)
	}
	return sc
}

func (r *Resolver) resolve(sc, title string) (string, bool) {
	if sc == "" {
		log.Printf("No short code for %q; skipping", title)
		return "", false
	}

	// The environment is authoritative; mirror it into the cache so the
	// persisted document reflects what was actually used.
	if id := r.env.ThreadID(sc); id != "" {
		r.Threads[sc] = id
		r.cached[sc] = false
		return id, true
	}
	if id := r.Threads[sc]; id != "" {
		r.cached[sc] = true
		return id, true
	}

	if r.env.Autocreate && r.Creator != nil && r.env.ChannelID != "" {
		id, err := r.Creator.CreateThread(r.env.ChannelID, title)
		if err != nil {
			log.Printf("Creating thread for %q: %v", title, err)
			return "", false
		}
		log.Printf("Created thread %s for %q", id, title)
		r.Threads[sc] = id
		r.cached[sc] = false
		return id, true
	}

	log.Printf("Missing %s_THREAD_ID for %q; skipping", sc, title)
	return "", false
}

// Invalidate drops a destination id that delivery found unusable, forcing
// re-resolution instead of a silent stale route. Only cache-sourced ids
// are dropped: environment routes are authoritative, and a thread created
// this run should not be recreated over a transient send failure.
func (r *Resolver) Invalidate(host, title string) {
	r.invalidate(shortCodeFor(r.cfg, host, title))
}

// InvalidateEntry is Invalidate for destinations resolved via ResolveEntry.
func (r *Resolver) InvalidateEntry(e feed.Entry) {
	r.invalidate(r.entryCode(e))
}

func (r *Resolver) invalidate(sc string) {
	if sc == "" || !r.cached[sc] {
		return
	}
	delete(r.Threads, sc)
	delete(r.cached, sc)
	log.Printf("Dropped stale cached thread id for %s", sc)
}

func shortCodeFor(cfg *config.Config, host, title string) string {
	if n, ok := cfg.FindNovel(host, title); ok {
		if sc := strings.TrimSpace(n.ShortCode); sc != "" {
			return strings.ToUpper(sc)
		}
	}
	return ShortCode(title)
}
