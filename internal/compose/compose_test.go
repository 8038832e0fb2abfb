package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/cannibal-turtle/mistmint-bot/internal/config"
	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
	"github.com/cannibal-turtle/mistmint-bot/internal/track"
)

func TestCommentMessage(t *testing.T) {
	e := feed.Entry{
		Title:       "Tiny Dragon's Lucky Break!",
		Author:      "reader99",
		ChapterName: "Chapter 42",
		Description: "what a cliffhanger!!",
		Link:        "https://example.com/comment/1",
		Host:        "Mistmint Haven",
		Published:   time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
	}

	msg := Comment(e, "9999")
	if msg.Embed == nil {
		t.Fatal("comment has no embed")
	}
	if !strings.Contains(msg.Embed.AuthorName, "reader99") || !strings.Contains(msg.Embed.AuthorName, "Chapter 42") {
		t.Errorf("author line = %q", msg.Embed.AuthorName)
	}
	if !strings.HasPrefix(msg.Embed.Title, "❛❛") || !strings.HasSuffix(msg.Embed.Title, "❜❜") {
		t.Errorf("quote wrapping = %q", msg.Embed.Title)
	}
	if msg.Embed.Color != colorComment {
		t.Errorf("color = %#x", msg.Embed.Color)
	}
	if !strings.Contains(msg.Content, "<@9999>") {
		t.Errorf("ping missing from %q", msg.Content)
	}
	if len(msg.Mentions.Users) != 1 || msg.Mentions.Users[0] != "9999" {
		t.Errorf("mention allow-list = %v", msg.Mentions.Users)
	}
	if !msg.SuppressEmbeds {
		t.Error("comment content must suppress link previews")
	}
}

func TestCommentWithoutPingUser(t *testing.T) {
	msg := Comment(feed.Entry{Title: "X", Description: "hi"}, "")
	if strings.Contains(msg.Content, "<@") {
		t.Errorf("unexpected ping in %q", msg.Content)
	}
	if len(msg.Mentions.Users) != 0 {
		t.Errorf("mention allow-list = %v", msg.Mentions.Users)
	}
}

func TestQuoteCommentTruncates(t *testing.T) {
	long := strings.Repeat("あ", 400)
	got := quoteComment(long)
	if n := len([]rune(got)); n > 256 {
		t.Errorf("quoted comment is %d runes, limit 256", n)
	}
	if !strings.Contains(got, "...") {
		t.Error("truncated comment should carry an ellipsis")
	}

	short := quoteComment("hi")
	if short != "❛❛hi❜❜" {
		t.Errorf("short comment = %q", short)
	}
}

func TestChapterMessages(t *testing.T) {
	e := feed.Entry{
		Title:       "Tiny Dragon's Lucky Break!",
		ChapterName: "Chapter 100",
		NameExtend:  "Moonlit Palace 001",
		Link:        "https://example.com/ch/100",
		Host:        "Mistmint Haven",
	}

	free := FreeChapter(e)
	if free.Embed == nil || free.Embed.Color != colorFree {
		t.Fatalf("free embed = %+v", free.Embed)
	}
	if len(free.Buttons) != 1 || free.Buttons[0].URL != e.Link || free.Buttons[0].Label != "Read here" {
		t.Errorf("free button = %v", free.Buttons)
	}

	paid := PaidChapter(e, config.Novel{CoinPrice: "5", CoinEmoji: "<a:coin:1>"}, "")
	if paid.Embed == nil || paid.Embed.Color != colorPaid {
		t.Fatalf("paid embed = %+v", paid.Embed)
	}
	if len(paid.Buttons) != 1 || paid.Buttons[0].Label != "5" || paid.Buttons[0].Emoji != "<a:coin:1>" {
		t.Errorf("paid button = %v", paid.Buttons)
	}
}

func TestCoinButton(t *testing.T) {
	tests := []struct {
		name      string
		novel     config.Novel
		hostEmoji string
		entryCoin string
		wantLabel string
		wantEmoji string
	}{
		{"mapping wins", config.Novel{CoinPrice: "5", CoinEmoji: "<a:c:1>"}, "<a:h:2>", "<a:f:3> 9", "5", "<a:c:1>"},
		{"host emoji fills gap", config.Novel{CoinPrice: "5"}, "<a:h:2>", "", "5", "<a:h:2>"},
		{"feed fills everything", config.Novel{}, "", "<a:f:3> 9", "9", "<a:f:3>"},
		{"nothing anywhere", config.Novel{}, "", "", "Read here", ""},
	}
	for _, tt := range tests {
		label, emoji := CoinButton(tt.novel, tt.hostEmoji, tt.entryCoin)
		if label != tt.wantLabel || emoji != tt.wantEmoji {
			t.Errorf("%s: CoinButton = %q/%q, want %q/%q", tt.name, label, emoji, tt.wantLabel, tt.wantEmoji)
		}
	}
}

func TestArcParts(t *testing.T) {
	h := &state.ArcHistory{
		Unlocked: []string{"【Arc 1】Moonlit Palace"},
		Locked:   []string{"【Arc 2】Frozen Throne", "【Arc 3】Silver City"},
	}
	novel := config.Novel{NovelURL: "https://example.com/novel"}
	parts := Arc("Tiny Dragon's Lucky Break!", novel, "Mistmint Haven", h, "【Arc 3】Silver City")

	if !strings.Contains(parts.Header.Content, "NEW ARC ALERT") {
		t.Errorf("header = %q", parts.Header.Content)
	}
	if !strings.Contains(parts.Header.Content, "https://example.com/novel") {
		t.Error("header missing novel link")
	}
	if !parts.Header.SuppressEmbeds {
		t.Error("header must suppress link previews")
	}

	if parts.Unlocked == nil {
		t.Fatal("unlocked block missing")
	}
	if !strings.Contains(parts.Unlocked.Embed.Description, "**【Arc 1】**Moonlit Palace") {
		t.Errorf("unlocked = %q", parts.Unlocked.Embed.Description)
	}

	desc := parts.Locked.Embed.Description
	if !strings.HasPrefix(desc, "||") || !strings.HasSuffix(desc, "||") {
		t.Errorf("locked list must be spoilered: %q", desc)
	}
	if !strings.Contains(desc, "<a:9410pinkarrow:1368139217556996117>**【Arc 3】**Silver City") {
		t.Errorf("newest locked not marked: %q", desc)
	}

	if !strings.Contains(parts.Footer.Content, "Mistmint Haven") {
		t.Errorf("footer = %q", parts.Footer.Content)
	}
}

func TestArcPartsNoUnlocked(t *testing.T) {
	h := &state.ArcHistory{Locked: []string{"【Arc 1】Moonlit Palace"}}
	parts := Arc("X", config.Novel{}, "Mistmint Haven", h, "【Arc 1】Moonlit Palace")
	if parts.Unlocked != nil {
		t.Error("unexpected unlocked block")
	}
}

func TestNumberEmoji(t *testing.T) {
	got := numberEmoji(12)
	if !strings.Contains(got, "one_emj") || !strings.Contains(got, "two_emj") {
		t.Errorf("numberEmoji(12) = %q", got)
	}
}

func TestExtrasWording(t *testing.T) {
	novel := config.Novel{NovelURL: "https://example.com/novel"}

	first := Extras("X", novel, "Mistmint Haven", track.ExtrasDecision{
		NewExtras: true, MaxExtras: 1, TotalExtras: 5,
	})
	if !strings.Contains(first.Content, "The first of those extras just dropped") {
		t.Errorf("first extra wording: %q", first.Content)
	}
	if !strings.Contains(first.Content, "just 5 extras") {
		t.Errorf("remaining wording: %q", first.Content)
	}

	all := Extras("X", novel, "Mistmint Haven", track.ExtrasDecision{
		NewExtras: true, MaxExtras: 5, TotalExtras: 5,
	})
	if !strings.Contains(all.Content, "All extras just dropped") {
		t.Errorf("all-out wording: %q", all.Content)
	}

	ss := Extras("X", novel, "Mistmint Haven", track.ExtrasDecision{
		NewSS: true, MaxSS: 1, TotalSS: 1,
	})
	if !strings.Contains(ss.Content, "SIDE STORY") || strings.Contains(ss.Content, "SIDE STORIES") {
		t.Errorf("singular side story label: %q", ss.Content)
	}
	if !strings.Contains(ss.Content, "1 side story left") {
		t.Errorf("singular remaining: %q", ss.Content)
	}
}

func TestCompletionVariants(t *testing.T) {
	novel := config.Novel{
		NovelURL:     "https://example.com/novel",
		RoleMention:  "<@&123>",
		RoleURL:      "https://example.com/roles",
		ChapterCount: "198 chapters",
	}
	roles := config.Roles{Completed: "<@&456>"}
	final := feed.Entry{ChapterName: "Chapter 198", Link: "https://example.com/198"}

	paid := Completion(track.PaidCompletion, "X", novel, "Mistmint Haven", roles, final, "a year and 2 months")
	if !strings.Contains(paid.Content, "a year and 2 months") || !strings.Contains(paid.Content, "binge all advance releases") {
		t.Errorf("paid completion: %q", paid.Content)
	}
	if !paid.Mentions.Roles {
		t.Error("completion must allow role pings")
	}

	free := Completion(track.FreeCompletion, "X", novel, "Mistmint Haven", roles, final, "")
	if !strings.Contains(free.Content, "completely free") || !strings.Contains(free.Content, "complete access granted!") {
		t.Errorf("free completion: %q", free.Content)
	}

	onlyFree := Completion(track.OnlyFreeCompletion, "X", novel, "Mistmint Haven", roles, final, "8 months")
	if !strings.Contains(onlyFree.Content, "8 months") || !strings.Contains(onlyFree.Content, "binge on all the releases") {
		t.Errorf("only-free completion: %q", onlyFree.Content)
	}
}

func TestLaunchMessage(t *testing.T) {
	novel := config.Novel{
		NovelURL:       "https://example.com/novel",
		FeaturedImage:  "https://example.com/cover.jpg",
		RoleURL:        "https://example.com/roles",
		CustomEmoji:    "<:tdlb:42>",
		ExtraPingRoles: "<@&777>",
		NSFW:           true,
	}
	roles := config.Roles{NewNovels: "<@&100>", NSFW: "<@&200>"}
	host := config.Host{Translator: "cannibal turtle", HostLogo: "https://example.com/logo.png"}
	first := feed.Entry{
		ChapterName: "Chapter 1",
		Link:        "https://example.com/ch/1",
		Description: "<p>A dragon hatches.</p><hr><p>promo junk</p>",
		Published:   time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
	}

	msg := Launch("Tiny Dragon's Lucky Break!", novel, host, "Mistmint Haven", roles, first)
	if msg.Embed == nil || msg.Embed.Color != colorLaunch {
		t.Fatalf("embed = %+v", msg.Embed)
	}
	if msg.Embed.Description != "A dragon hatches." {
		t.Errorf("blurb = %q", msg.Embed.Description)
	}
	if msg.Embed.Image != novel.FeaturedImage {
		t.Errorf("cover = %q", msg.Embed.Image)
	}

	// Ping order: launch role, extra roles, NSFW last.
	idxLaunch := strings.Index(msg.Content, "<@&100>")
	idxExtra := strings.Index(msg.Content, "<@&777>")
	idxNSFW := strings.Index(msg.Content, "<@&200>")
	if idxLaunch < 0 || idxExtra < 0 || idxNSFW < 0 {
		t.Fatalf("missing pings in %q", msg.Content)
	}
	if !(idxLaunch < idxExtra && idxExtra < idxNSFW) {
		t.Errorf("ping order wrong: %d/%d/%d", idxLaunch, idxExtra, idxNSFW)
	}
	if !msg.Mentions.Roles {
		t.Error("launch must allow role pings")
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"cuts at hr", "<p>keep</p><hr/><p>drop</p>", "keep"},
		{"strips tags", "<p><b>bold</b> and <i>italic</i></p>", "bold and italic"},
		{"unescapes entities", "<p>ouch &amp; oof</p>", "ouch & oof"},
		{"squashes whitespace", "<p>a    b</p>\n\n<p>c</p>", "a b\nc"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		if got := CleanDescription(tt.in); got != tt.want {
			t.Errorf("%s: CleanDescription = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCleanDescriptionCapsLength(t *testing.T) {
	got := CleanDescription("<p>" + strings.Repeat("x", 5000) + "</p>")
	if n := len([]rune(got)); n > maxBlurbRunes+1 {
		t.Errorf("blurb is %d runes", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("capped blurb should end with an ellipsis")
	}
}
