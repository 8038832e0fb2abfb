package track

import (
	"reflect"
	"testing"

	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
)

func TestIsArcStart(t *testing.T) {
	tests := []struct {
		name    string
		volume  string
		chapter string
		extend  string
		want    bool
	}{
		{"explicit 001 marker in extend", "", "Chapter 120", "**Moonlit Palace 001**", true},
		{"paren one marker", "", "Chapter 45 (1)", "", true},
		{"dot one marker", "", "Chapter 88", "Frozen Throne .1", true},
		{"arc volume with decimal extend", "Arc 3", "Chapter 10", "3.1", true},
		{"world volume no marker", "World 12", "Chapter 200", "", true},
		{"mid-arc chapter", "", "Chapter 121", "Moonlit Palace 002", false},
		{"mid-arc decimal", "", "Chapter 89", "Frozen Throne .2", false},
		{"plain chapter", "", "Chapter 50", "", false},
		{"non-arc volume label", "Season Finale", "Chapter 1", "", false},
	}
	for _, tt := range tests {
		if got := IsArcStart(tt.volume, tt.chapter, tt.extend); got != tt.want {
			t.Errorf("%s: IsArcStart(%q, %q, %q) = %v, want %v",
				tt.name, tt.volume, tt.chapter, tt.extend, got, tt.want)
		}
	}
}

func TestArcBase(t *testing.T) {
	tests := []struct {
		volume, chapter, extend string
		want                    string
	}{
		{"Arc 3: Moonlit Palace", "Chapter 10", "", "Moonlit Palace"},
		{"", "Chapter 45", "**12. Frozen Throne 001**", "Frozen Throne"},
		{"", "12. Silver City", "", "Silver City"},
	}
	for _, tt := range tests {
		if got := ArcBase(tt.volume, tt.chapter, tt.extend); got != tt.want {
			t.Errorf("ArcBase(%q, %q, %q) = %q, want %q",
				tt.volume, tt.chapter, tt.extend, got, tt.want)
		}
	}
}

func TestArcNumber(t *testing.T) {
	if got := ArcNumber("【Arc 7】Moonlit Palace"); got != 7 {
		t.Errorf("ArcNumber = %d, want 7", got)
	}
	if got := ArcNumber("no label here"); got != 0 {
		t.Errorf("ArcNumber = %d, want 0", got)
	}
}

func TestNextArcNumberPrefersLastAnnounced(t *testing.T) {
	h := &state.ArcHistory{
		Unlocked:      []string{"【Arc 1】A", "【Arc 2】B"},
		Locked:        []string{"【Arc 3】C"},
		LastAnnounced: "【Arc 3】C",
	}
	if got := NextArcNumber(h); got != 4 {
		t.Errorf("NextArcNumber = %d, want 4", got)
	}

	h.LastAnnounced = ""
	if got := NextArcNumber(h); got != 4 {
		t.Errorf("NextArcNumber without last_announced = %d, want 4", got)
	}

	empty := &state.ArcHistory{}
	if got := NextArcNumber(empty); got != 1 {
		t.Errorf("NextArcNumber on empty history = %d, want 1", got)
	}
}

func TestArcsBootstrapIsSilent(t *testing.T) {
	h := &state.ArcHistory{}
	up := Arcs(h, []string{"Moonlit Palace"}, []string{"Frozen Throne", "Silver City"})

	if up.Announce {
		t.Error("first-ever history must not trigger an announcement")
	}
	if !up.Changed {
		t.Error("bootstrap should mark history changed")
	}
	if want := []string{"【Arc 1】Moonlit Palace"}; !reflect.DeepEqual(h.Unlocked, want) {
		t.Errorf("unlocked = %v, want %v", h.Unlocked, want)
	}
	if want := []string{"【Arc 2】Frozen Throne", "【Arc 3】Silver City"}; !reflect.DeepEqual(h.Locked, want) {
		t.Errorf("locked = %v, want %v", h.Locked, want)
	}
	if h.LastAnnounced != "【Arc 3】Silver City" {
		t.Errorf("last_announced = %q, want newest locked", h.LastAnnounced)
	}
}

func TestArcsNewLockedArcAnnounces(t *testing.T) {
	h := &state.ArcHistory{
		Unlocked:      []string{"【Arc 1】Moonlit Palace"},
		Locked:        []string{"【Arc 2】Frozen Throne"},
		LastAnnounced: "【Arc 2】Frozen Throne",
	}
	up := Arcs(h, nil, []string{"Silver City"})

	if !up.Announce {
		t.Fatal("expected announcement for new locked arc")
	}
	if up.NewArc != "【Arc 3】Silver City" {
		t.Errorf("NewArc = %q, want 【Arc 3】Silver City", up.NewArc)
	}
	// The caller records last_announced only after the header lands.
	if h.LastAnnounced != "【Arc 2】Frozen Throne" {
		t.Errorf("last_announced moved to %q before confirmed delivery", h.LastAnnounced)
	}
}

func TestArcsUnlockIsOneDirectional(t *testing.T) {
	h := &state.ArcHistory{
		Unlocked:      []string{"【Arc 1】Moonlit Palace"},
		Locked:        []string{"【Arc 2】Frozen Throne"},
		LastAnnounced: "【Arc 2】Frozen Throne",
	}

	// Free feed starts the locked arc: it moves to unlocked.
	up := Arcs(h, []string{"Frozen Throne"}, nil)
	if !up.Changed || up.Announce {
		t.Fatalf("unlock move: changed=%v announce=%v, want true/false", up.Changed, up.Announce)
	}
	if want := []string{"【Arc 1】Moonlit Palace", "【Arc 2】Frozen Throne"}; !reflect.DeepEqual(h.Unlocked, want) {
		t.Errorf("unlocked = %v, want %v", h.Unlocked, want)
	}
	if len(h.Locked) != 0 {
		t.Errorf("locked = %v, want empty", h.Locked)
	}

	// The same base showing up again on the paid side must not re-lock it.
	up = Arcs(h, nil, []string{"Frozen Throne"})
	if up.Changed || up.Announce {
		t.Errorf("re-lock attempt: changed=%v announce=%v, want false/false", up.Changed, up.Announce)
	}
	if len(h.Locked) != 0 {
		t.Errorf("arc re-created as locked: %v", h.Locked)
	}
}

func TestArcsFirstFreeOnlyArcIsSilent(t *testing.T) {
	h := &state.ArcHistory{}
	// Bootstrap with only a free arc, then a second free-only arc.
	Arcs(h, []string{"Moonlit Palace"}, nil)
	up := Arcs(h, []string{"Frozen Throne"}, nil)
	if up.Announce {
		t.Error("free-only history must never announce")
	}
	if want := []string{"【Arc 1】Moonlit Palace", "【Arc 2】Frozen Throne"}; !reflect.DeepEqual(h.Unlocked, want) {
		t.Errorf("unlocked = %v, want %v", h.Unlocked, want)
	}
}

func TestArcsAlreadyAnnouncedStaysQuiet(t *testing.T) {
	h := &state.ArcHistory{
		Locked:        []string{"【Arc 1】Moonlit Palace"},
		LastAnnounced: "【Arc 1】Moonlit Palace",
	}
	up := Arcs(h, nil, []string{"Moonlit Palace"})
	if up.Announce || up.Changed {
		t.Errorf("re-run on settled history: changed=%v announce=%v", up.Changed, up.Announce)
	}
}

func TestNewArcBasesFiltersByTitle(t *testing.T) {
	entries := []feed.Entry{
		{Title: "Tyrant's Beloved", ChapterName: "Chapter 1", NameExtend: "Moonlit Palace 001"},
		{Title: "Other Novel", ChapterName: "Chapter 1", NameExtend: "Wrong Book 001"},
		{Title: "Tyrant's Beloved", ChapterName: "Chapter 2", NameExtend: "Moonlit Palace 002"},
	}
	got := NewArcBases(entries, "Tyrant's Beloved")
	if want := []string{"Moonlit Palace"}; !reflect.DeepEqual(got, want) {
		t.Errorf("NewArcBases = %v, want %v", got, want)
	}
}
