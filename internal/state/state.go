// Package state persists the bot's durable state as flat JSON files:
// feed checkpoints, per-novel one-shot markers, and per-novel arc
// histories. Every document is whole-file read-modify-write; callers
// load, mutate in memory, then save the complete document.
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	checkpointsFile = "state_rss.json"
	novelsFile      = "state.json"
)

// Named checkpoint slots, one per logical feed stream.
const (
	SlotComments = "comments"
	SlotFree     = "free"
	SlotPaid     = "paid"
)

// Store reads and writes state documents under one directory.
type Store struct {
	dir string
}

// NewStore creates the state directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the on-disk path of a state file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Checkpoints records, per feed stream, the id of the last successfully
// processed entry, plus a cache of resolved thread destinations.
type Checkpoints struct {
	slots   map[string]string
	Threads map[string]string
}

// NewCheckpoints returns an empty checkpoint document with the three
// standard slots present.
func NewCheckpoints() *Checkpoints {
	return &Checkpoints{
		slots:   map[string]string{SlotComments: "", SlotFree: "", SlotPaid: ""},
		Threads: make(map[string]string),
	}
}

// Last returns the last processed entry id for a slot, or "".
func (c *Checkpoints) Last(slot string) string {
	return c.slots[slot]
}

// SetLast records the last processed entry id for a slot.
func (c *Checkpoints) SetLast(slot, guid string) {
	c.slots[slot] = guid
}

// MarshalJSON writes the legacy flat layout:
// {"<slot>_last_guid": id|null, ..., "threads": {...}}.
func (c *Checkpoints) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(c.slots)+1)
	for slot, guid := range c.slots {
		if guid == "" {
			doc[slot+"_last_guid"] = nil
		} else {
			doc[slot+"_last_guid"] = guid
		}
	}
	if len(c.Threads) > 0 {
		doc["threads"] = c.Threads
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalJSON reads the flat layout back, keeping unknown slots.
func (c *Checkpoints) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	fresh := NewCheckpoints()
	for key, raw := range doc {
		if key == "threads" {
			if err := json.Unmarshal(raw, &fresh.Threads); err != nil {
				return fmt.Errorf("threads cache: %w", err)
			}
			continue
		}
		slot, ok := strings.CutSuffix(key, "_last_guid")
		if !ok {
			continue
		}
		var guid *string
		if err := json.Unmarshal(raw, &guid); err != nil {
			return fmt.Errorf("slot %s: %w", key, err)
		}
		if guid != nil {
			fresh.slots[slot] = *guid
		} else {
			fresh.slots[slot] = ""
		}
	}
	*c = *fresh
	return nil
}

// LoadCheckpoints loads the checkpoint document. A missing, empty, or
// corrupt file yields a fresh default document, never an error: losing a
// checkpoint only causes re-delivery, which downstream one-shot state
// absorbs.
func (s *Store) LoadCheckpoints() *Checkpoints {
	c := NewCheckpoints()
	loadJSON(s.Path(checkpointsFile), c, func() { *c = *NewCheckpoints() })
	return c
}

// SaveCheckpoints overwrites the checkpoint document.
func (s *Store) SaveCheckpoints(c *Checkpoints) error {
	return writeJSON(s.Path(checkpointsFile), c)
}

// CheckpointsPath returns the checkpoint document's path, for publishing.
func (s *Store) CheckpointsPath() string { return s.Path(checkpointsFile) }

// Mark records a one-shot announcement: which chapter triggered it and when
// it was sent. Presence of a Mark means "already announced", permanently.
type Mark struct {
	Chapter string    `json:"chapter"`
	SentAt  time.Time `json:"sent_at"`
}

// NovelMeta is the per-novel slice of the shared state document.
type NovelMeta struct {
	PaidCompletion     *Mark `json:"paid_completion,omitempty"`
	FreeCompletion     *Mark `json:"free_completion,omitempty"`
	OnlyFreeCompletion *Mark `json:"only_free_completion,omitempty"`
	LaunchFree         *Mark `json:"launch_free,omitempty"`
	ExtraAnnounced     bool  `json:"extra_announced,omitempty"`
	LastExtraAnnounced int   `json:"last_extra_announced,omitempty"`
}

// Completed reports whether any completion announcement was ever sent.
func (m *NovelMeta) Completed() bool {
	return m.PaidCompletion != nil || m.FreeCompletion != nil || m.OnlyFreeCompletion != nil
}

// Novels maps novel title to its durable meta.
type Novels map[string]*NovelMeta

// Meta returns the meta for a title, creating it in the document if absent.
func (n Novels) Meta(title string) *NovelMeta {
	m, ok := n[title]
	if !ok {
		m = &NovelMeta{}
		n[title] = m
	}
	return m
}

// LoadNovels loads the shared novel-state document, tolerating a
// missing or corrupt file.
func (s *Store) LoadNovels() Novels {
	n := make(Novels)
	loadJSON(s.Path(novelsFile), &n, func() { n = make(Novels) })
	return n
}

// SaveNovels overwrites the shared novel-state document.
func (s *Store) SaveNovels(n Novels) error {
	return writeJSON(s.Path(novelsFile), n)
}

// NovelsPath returns the novel-state document's path, for publishing.
func (s *Store) NovelsPath() string { return s.Path(novelsFile) }

// ArcHistory tracks a novel's arcs. Labels are formatted "【Arc N】<name>";
// an entry only ever moves from Locked to Unlocked, never back.
type ArcHistory struct {
	Unlocked      []string `json:"unlocked"`
	Locked        []string `json:"locked"`
	LastAnnounced string   `json:"last_announced"`
}

// Empty reports whether the history has never recorded an arc.
func (h *ArcHistory) Empty() bool {
	return len(h.Unlocked) == 0 && len(h.Locked) == 0
}

// LoadHistory loads one novel's arc history file (name from the mapping
// table), tolerating a missing or corrupt file.
func (s *Store) LoadHistory(name string) *ArcHistory {
	h := &ArcHistory{}
	loadJSON(s.Path(name), h, func() { *h = ArcHistory{} })
	if h.Unlocked == nil {
		h.Unlocked = []string{}
	}
	if h.Locked == nil {
		h.Locked = []string{}
	}
	return h
}

// SaveHistory overwrites one novel's arc history file.
func (s *Store) SaveHistory(name string, h *ArcHistory) error {
	return writeJSON(s.Path(name), h)
}

// loadJSON fills v from path. Missing files are silent; empty or corrupt
// content logs a warning and leaves v reset via the provided reset func.
func loadJSON(path string, v any, reset func()) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Reading %s: %v; starting fresh", path, err)
		}
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		log.Printf("%s is empty; starting fresh", path)
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("%s contains invalid JSON (%v); starting fresh", path, err)
		reset()
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
