// Package pipeline orchestrates the bot runs: load state, fetch feeds,
// decide, deliver, persist. Each exported method is one scheduled bot.
package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/cannibal-turtle/mistmint-bot/internal/compose"
	"github.com/cannibal-turtle/mistmint-bot/internal/config"
	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/route"
	"github.com/cannibal-turtle/mistmint-bot/internal/sender"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
	"github.com/cannibal-turtle/mistmint-bot/internal/track"
)

// Result summarizes one bot run.
type Result struct {
	Name    string
	Checked int // entries or novels considered
	Sent    int // messages confirmed delivered
	Skipped int // considered but not delivered (no route, not due, failed)
}

func (r Result) String() string {
	return fmt.Sprintf("%s: checked %d, sent %d, skipped %d", r.Name, r.Checked, r.Sent, r.Skipped)
}

// Pipeline wires the bots' shared dependencies together.
type Pipeline struct {
	cfg       *config.Config
	env       *config.Env
	store     *state.Store
	sender    sender.Sender
	publisher state.Publisher

	// fetch and now are swappable in tests.
	fetch func(url string) ([]feed.Entry, error)
	now   func() time.Time
}

// New creates a pipeline over loaded config, the environment snapshot,
// an opened state store, and a delivery client.
func New(cfg *config.Config, env *config.Env, store *state.Store, s sender.Sender, pub state.Publisher) *Pipeline {
	if pub == nil {
		pub = state.NopPublisher{}
	}
	return &Pipeline{
		cfg:       cfg,
		env:       env,
		store:     store,
		sender:    s,
		publisher: pub,
		fetch:     feed.Fetch,
		now:       time.Now,
	}
}

func (p *Pipeline) resolver(threads map[string]string) *route.Resolver {
	r := route.NewResolver(p.cfg, p.env, threads)
	if c, ok := p.sender.(sender.Creator); ok {
		r.Creator = c
	}
	return r
}

// publish pushes updated state files when publishing is enabled.
func (p *Pipeline) publish(paths ...string) {
	if !p.cfg.Publish {
		return
	}
	if err := p.publisher.Publish(paths...); err != nil {
		log.Printf("Publishing state: %v", err)
	}
}

// Comments relays new comment-feed entries into each novel's thread.
func (p *Pipeline) Comments() (Result, error) {
	return p.relay("comments", state.SlotComments, p.cfg.Feeds.Comments, func(e feed.Entry) sender.Message {
		return compose.Comment(e, p.cfg.PingUser)
	})
}

// Chapters relays new chapter-feed entries. feedType is "free" or "paid".
func (p *Pipeline) Chapters(feedType string) (Result, error) {
	switch feedType {
	case "free":
		return p.relay("free chapters", state.SlotFree, p.cfg.Feeds.Free, compose.FreeChapter)
	case "paid":
		hostEmoji := p.cfg.Hosts[p.cfg.Host].CoinEmoji
		return p.relay("paid chapters", state.SlotPaid, p.cfg.Feeds.Paid, func(e feed.Entry) sender.Message {
			novel, _ := p.cfg.FindNovel(p.cfg.Host, e.Title)
			return compose.PaidChapter(e, novel, hostEmoji)
		})
	default:
		return Result{}, fmt.Errorf("unknown feed type %q (want free or paid)", feedType)
	}
}

// relay is the shared checkpointed feed-to-thread loop. The checkpoint
// only ever advances past an entry whose delivery was confirmed; a send
// failure stops the run so nothing behind it is lost. Entries with no
// resolvable destination are skipped without self-advancing the cursor,
// so they are retried once a route appears, unless a later delivery
// moves the cursor past them first.
func (p *Pipeline) relay(name, slot, url string, build func(feed.Entry) sender.Message) (Result, error) {
	res := Result{Name: name}
	if url == "" {
		return res, fmt.Errorf("no %s feed configured", name)
	}

	cp := p.store.LoadCheckpoints()
	resolver := p.resolver(cp.Threads)

	entries, err := p.fetch(url)
	if err != nil {
		// A flaky feed host is routine; the next run catches up.
		log.Printf("Fetching %s feed: %v", name, err)
		return res, nil
	}
	entries = route.FilterHost(entries, p.cfg.Host)
	fresh := route.SelectUnseen(entries, cp.Last(slot))
	log.Printf("%s: %d entries for %s, %d new", name, len(entries), p.cfg.Host, len(fresh))

	dirty := false
	for _, e := range fresh {
		res.Checked++
		destID, ok := resolver.ResolveEntry(e)
		if !ok {
			res.Skipped++
			continue
		}
		if !p.sender.Prepare(destID) {
			resolver.InvalidateEntry(e)
			res.Skipped++
			continue
		}
		if err := p.sender.Send(destID, build(e)); err != nil {
			log.Printf("%s: sending %s to %s: %v; stopping before checkpoint advances", name, e.GUID, destID, err)
			resolver.InvalidateEntry(e)
			res.Skipped++
			break
		}
		cp.SetLast(slot, e.GUID)
		dirty = true
		res.Sent++
	}

	if err := p.store.SaveCheckpoints(cp); err != nil {
		return res, err
	}
	if dirty {
		p.publish(p.store.CheckpointsPath())
	}
	return res, nil
}

// Arcs reconciles each novel's arc history against its own free and
// paid feeds and announces newly locked arcs in the novel's thread.
// Only the header gates recording: the embeds and footer are cosmetic,
// and a partial announcement whose header never landed must come back
// next run.
func (p *Pipeline) Arcs() (Result, error) {
	res := Result{Name: "arcs"}
	cp := p.store.LoadCheckpoints()
	resolver := p.resolver(cp.Threads)

	for title, novel := range p.cfg.TargetNovels() {
		// The locked-vs-unlocked split needs both feeds.
		if novel.FreeFeed == "" || novel.PaidFeed == "" || novel.HistoryFile == "" {
			continue
		}
		res.Checked++

		free, err := p.fetch(novel.FreeFeed)
		if err != nil {
			log.Printf("arcs: fetching free feed for %q: %v", title, err)
			res.Skipped++
			continue
		}
		paid, err := p.fetch(novel.PaidFeed)
		if err != nil {
			log.Printf("arcs: fetching paid feed for %q: %v", title, err)
			res.Skipped++
			continue
		}

		if novel.NSFW || anyNSFW(free) || anyNSFW(paid) {
			log.Printf("arcs: %q is marked NSFW", title)
		}

		h := p.store.LoadHistory(novel.HistoryFile)
		up := track.Arcs(h, track.NewArcBases(free, title), track.NewArcBases(paid, title))

		announced := false
		if up.Announce {
			destID, ok := resolver.Resolve(p.cfg.Host, title)
			if ok && !p.sender.Prepare(destID) {
				resolver.Invalidate(p.cfg.Host, title)
				ok = false
			}
			if ok {
				parts := compose.Arc(title, novel, p.cfg.Host, h, up.NewArc)
				if err := p.sender.Send(destID, parts.Header); err != nil {
					log.Printf("arcs: header for %q: %v; not recording announcement", title, err)
					resolver.Invalidate(p.cfg.Host, title)
				} else {
					announced = true
					h.LastAnnounced = up.NewArc
					if parts.Unlocked != nil {
						if err := p.sender.Send(destID, *parts.Unlocked); err != nil {
							log.Printf("arcs: unlocked block for %q: %v", title, err)
						}
					}
					if err := p.sender.Send(destID, parts.Locked); err != nil {
						log.Printf("arcs: locked block for %q: %v", title, err)
					}
					if err := p.sender.Send(destID, parts.Footer); err != nil {
						log.Printf("arcs: footer for %q: %v", title, err)
					}
				}
			}
		}

		if announced {
			res.Sent++
		} else if up.Announce {
			res.Skipped++
		}
		if up.Changed || announced {
			if err := p.store.SaveHistory(novel.HistoryFile, h); err != nil {
				log.Printf("arcs: saving history for %q: %v", title, err)
				continue
			}
			p.publish(p.store.Path(novel.HistoryFile))
		}
	}
	p.saveThreads(cp)
	return res, nil
}

// Extras posts the one-time extras/side-stories announcement in each
// novel's thread when its paid feed starts carrying them.
func (p *Pipeline) Extras() (Result, error) {
	res := Result{Name: "extras"}
	cp := p.store.LoadCheckpoints()
	resolver := p.resolver(cp.Threads)
	novels := p.store.LoadNovels()
	dirty := false

	for title, novel := range p.cfg.TargetNovels() {
		if novel.PaidFeed == "" {
			continue
		}
		res.Checked++

		paid, err := p.fetch(novel.PaidFeed)
		if err != nil {
			log.Printf("extras: fetching paid feed for %q: %v", title, err)
			res.Skipped++
			continue
		}

		meta := novels.Meta(title)
		d := track.Extras(meta, novel, paid)
		if !d.Announce {
			res.Skipped++
			continue
		}

		destID, ok := resolver.Resolve(p.cfg.Host, title)
		if ok && !p.sender.Prepare(destID) {
			resolver.Invalidate(p.cfg.Host, title)
			ok = false
		}
		if !ok {
			res.Skipped++
			continue
		}
		if err := p.sender.Send(destID, compose.Extras(title, novel, p.cfg.Host, d)); err != nil {
			log.Printf("extras: sending for %q: %v; latch stays unset", title, err)
			resolver.Invalidate(p.cfg.Host, title)
			res.Skipped++
			continue
		}
		meta.LastExtraAnnounced = d.Current
		meta.ExtraAnnounced = true
		dirty = true
		res.Sent++
	}

	if dirty {
		if err := p.store.SaveNovels(novels); err != nil {
			return res, err
		}
		p.publish(p.store.NovelsPath())
	}
	p.saveThreads(cp)
	return res, nil
}

// Completed announces a novel's completion in the announcement channel
// once its configured final chapter appears in the given feed. feedType
// is "free" or "paid"; each of the three completion flags is set
// independently, only on confirmed delivery.
func (p *Pipeline) Completed(feedType string) (Result, error) {
	res := Result{Name: "completed (" + feedType + ")"}
	if feedType != "free" && feedType != "paid" {
		return res, fmt.Errorf("unknown feed type %q (want free or paid)", feedType)
	}
	if p.env.ChannelID == "" {
		return res, fmt.Errorf("no announcement channel configured (DISCORD_CHANNEL_ID)")
	}

	novels := p.store.LoadNovels()
	dirty := false

	for title, novel := range p.cfg.TargetNovels() {
		if novel.LastChapter == "" {
			continue
		}
		url := novel.FreeFeed
		if feedType == "paid" {
			url = novel.PaidFeed
		}
		if url == "" {
			continue
		}
		res.Checked++

		meta := novels.Meta(title)
		kind := track.KindFor(feedType, novel.PaidFeed != "")
		if kind.Announced(meta) {
			res.Skipped++
			continue
		}

		entries, err := p.fetch(url)
		if err != nil {
			log.Printf("completed: fetching %s feed for %q: %v", feedType, title, err)
			res.Skipped++
			continue
		}
		final, ok := track.FindFinalChapter(entries, novel.LastChapter)
		if !ok {
			res.Skipped++
			continue
		}

		end := final.Published
		if end.IsZero() {
			end = p.now()
		}
		duration, err := track.DurationSince(novel.StartDate, end)
		if err != nil {
			log.Printf("completed: %q: %v", title, err)
			duration = "a long stretch"
		}

		msg := compose.Completion(kind, title, novel, p.cfg.Host, p.cfg.Roles, final, duration)
		if err := p.sender.Send(p.env.ChannelID, msg); err != nil {
			log.Printf("completed: sending for %q: %v; flag stays unset", title, err)
			res.Skipped++
			continue
		}
		kind.Record(meta, &state.Mark{Chapter: final.ChapterName, SentAt: p.now()})
		dirty = true
		res.Sent++
	}

	if dirty {
		if err := p.store.SaveNovels(novels); err != nil {
			return res, err
		}
		p.publish(p.store.NovelsPath())
	}
	return res, nil
}

// Launches announces a brand-new series in the announcement channel when
// its first chapter shows up in its free feed. One shot per novel.
func (p *Pipeline) Launches() (Result, error) {
	res := Result{Name: "launches"}
	if p.env.ChannelID == "" {
		return res, fmt.Errorf("no announcement channel configured (DISCORD_CHANNEL_ID)")
	}

	host := p.cfg.Hosts[p.cfg.Host]
	novels := p.store.LoadNovels()
	dirty := false

	for title, novel := range p.cfg.TargetNovels() {
		if novel.FreeFeed == "" {
			continue
		}
		res.Checked++

		meta := novels.Meta(title)
		if meta.LaunchFree != nil {
			res.Skipped++
			continue
		}

		entries, err := p.fetch(novel.FreeFeed)
		if err != nil {
			log.Printf("launches: fetching free feed for %q: %v", title, err)
			res.Skipped++
			continue
		}
		first, ok := track.FindLaunch(entries, title)
		if !ok {
			res.Skipped++
			continue
		}

		msg := compose.Launch(title, novel, host, p.cfg.Host, p.cfg.Roles, first)
		if err := p.sender.Send(p.env.ChannelID, msg); err != nil {
			log.Printf("launches: sending for %q: %v; mark stays unset", title, err)
			res.Skipped++
			continue
		}
		meta.LaunchFree = &state.Mark{Chapter: first.ChapterName, SentAt: p.now()}
		dirty = true
		res.Sent++
	}

	if dirty {
		if err := p.store.SaveNovels(novels); err != nil {
			return res, err
		}
		p.publish(p.store.NovelsPath())
	}
	return res, nil
}

func anyNSFW(entries []feed.Entry) bool {
	for _, e := range entries {
		if e.IsNSFW() {
			return true
		}
	}
	return false
}

// saveThreads persists the checkpoint document when a run may have grown
// the thread cache, without touching the feed cursors.
func (p *Pipeline) saveThreads(cp *state.Checkpoints) {
	if err := p.store.SaveCheckpoints(cp); err != nil {
		log.Printf("Saving thread cache: %v", err)
	}
}
