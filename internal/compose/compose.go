// Package compose builds outbound messages from feed entries and state
// transitions. Everything here is a pure function to sender.Message;
// nothing does I/O except the HTML cleanup parser.
package compose

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cannibal-turtle/mistmint-bot/internal/config"
	"github.com/cannibal-turtle/mistmint-bot/internal/feed"
	"github.com/cannibal-turtle/mistmint-bot/internal/sender"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
	"github.com/cannibal-turtle/mistmint-bot/internal/track"
)

// Embed colors per announcement family.
const (
	colorComment = 0xF0C7A4
	colorFree    = 0xFFF9BF
	colorPaid    = 0xA87676
	colorLaunch  = 0xAEC6CF
)

// Comment renders a comment-feed entry for the novel's thread.
func Comment(e feed.Entry, pingUser string) sender.Message {
	author := e.Author
	if author == "" {
		author = "anonymous"
	}

	embed := &sender.Embed{
		AuthorName: fmt.Sprintf("comment by %s 🕊️ %s", author, e.ChapterName),
		AuthorURL:  e.Link,
		Title:      quoteComment(strings.TrimSpace(e.Description)),
		Color:      colorComment,
		FooterText: e.Host,
		FooterIcon: e.HostLogo,
		Timestamp:  e.Published,
	}
	if e.ReplyChain != "" {
		embed.Description = e.ReplyChain
	}

	content := fmt.Sprintf("<a:7977heartslike:1368146209981857792> New comment for **%s**", e.Title)
	msg := sender.Message{Content: content, Embed: embed, SuppressEmbeds: true}
	if pingUser != "" {
		msg.Content += fmt.Sprintf(" || <@%s>", pingUser)
		msg.Mentions.Users = []string{pingUser}
	}
	return msg
}

// quoteComment wraps a comment in quotation marks, trimmed to Discord's
// 256-rune embed title limit.
func quoteComment(text string) string {
	const start, end, ellipsis = "❛❛", "❜❜", "..."
	max := 256 - len([]rune(start)) - len([]rune(end)) - len([]rune(ellipsis))
	if runes := []rune(text); len(runes) > max {
		text = strings.TrimRight(string(runes[:max]), " ") + ellipsis
	}
	return start + text + end
}

// FreeChapter renders a free-chapter entry.
func FreeChapter(e feed.Entry) sender.Message {
	content := "<a:HappyCloud:1365575487333859398> 𝐹𝓇𝑒𝑒 𝒞𝒽𝒶𝓅𝓉𝑒𝓇 <a:TurtleDance:1365253970435510293>\n" +
		fmt.Sprintf("<a:5037sweetpianoyay:1368138418487427102> **%s** <:pink_unlock:1368266307824255026>", e.Title)
	return sender.Message{
		Content: content,
		Embed:   chapterEmbed(e, colorFree),
		Buttons: []sender.Button{{Label: "Read here", URL: e.Link}},
	}
}

// PaidChapter renders a paid-chapter entry with its coin-price button.
func PaidChapter(e feed.Entry, novel config.Novel, hostCoinEmoji string) sender.Message {
	content := "<a:Crown:1365575414550106154> 𝒫𝓇𝑒𝓂𝒾𝓊𝓂 𝒞𝒽𝒶𝓅𝓉𝑒𝓇 <a:TurtleDance:1365253970435510293>\n" +
		fmt.Sprintf("<a:1366_sweetpiano_happy:1368136820965249034> **%s** <:pink_lock:1368266294855733291>", e.Title)
	label, emoji := CoinButton(novel, hostCoinEmoji, e.Coin)
	return sender.Message{
		Content: content,
		Embed:   chapterEmbed(e, colorPaid),
		Buttons: []sender.Button{{Label: label, URL: e.Link, Emoji: emoji}},
	}
}

func chapterEmbed(e feed.Entry, color int) *sender.Embed {
	return &sender.Embed{
		Title:       fmt.Sprintf("<a:moonandstars:1365569468629123184>**%s**", e.ChapterName),
		URL:         e.Link,
		Description: e.NameExtend,
		AuthorName:  e.Translator + "˙ᵕ˙",
		Thumbnail:   e.Thumbnail,
		FooterText:  e.Host,
		FooterIcon:  e.HostLogo,
		Color:       color,
		Timestamp:   e.Published,
	}
}

var coinTextRe = regexp.MustCompile(`^(<a?:[A-Za-z0-9_]+:\d+>)?\s*(\d+)?`)

// CoinButton resolves the price label and emoji for a paid chapter's
// button: mapping-table values win, the entry's coin field fills gaps,
// and a bare "Read here" is the last resort.
func CoinButton(novel config.Novel, hostCoinEmoji, entryCoin string) (label, emoji string) {
	label = strings.TrimSpace(novel.CoinPrice)
	emoji = strings.TrimSpace(novel.CoinEmoji)
	if emoji == "" {
		emoji = strings.TrimSpace(hostCoinEmoji)
	}

	if coin := strings.TrimSpace(entryCoin); coin != "" {
		if m := coinTextRe.FindStringSubmatch(coin); m != nil {
			if emoji == "" {
				emoji = m[1]
			}
			if label == "" {
				label = m[2]
			}
		}
	}

	if label == "" && emoji == "" {
		label = "Read here"
	}
	return label, emoji
}

var storedArcRe = regexp.MustCompile(`(【Arc\s+\d+】)\s*(.*)`)

// formatArcLine bolds the "【Arc N】" prefix of a stored label.
func formatArcLine(label string) string {
	if m := storedArcRe.FindStringSubmatch(label); m != nil {
		return fmt.Sprintf("**%s**%s", m[1], m[2])
	}
	return fmt.Sprintf("**%s**", label)
}

var digitEmoji = map[rune]string{
	'0': "<:7987_zero_emj_png:1368137498496335902>",
	'1': "<:5849_one_emj_png:1368137451801149510>",
	'2': "<:4751_two_emj_png:1368137429369753742>",
	'3': "<:5286_three_emj_png:1368137406523637811>",
	'4': "<:4477_four_emj_png:1368137382813106196>",
	'5': "<:3867_five_emj_png:1368137358800715806>",
	'6': "<:8923_six_emj_png:1368137333886550098>",
	'7': "<:4380_seven_emj_png:1368137314240303165>",
	'8': "<:9891_eight_emj_png:1368137290517581995>",
	'9': "<:1898_nine_emj_png:1368137143196717107>",
}

func numberEmoji(n int) string {
	var b strings.Builder
	for _, d := range fmt.Sprint(n) {
		b.WriteString(digitEmoji[d])
	}
	return b.String()
}

// ArcParts is the three-part (plus footer) new-arc announcement. Header
// carries the announcement semantics: its delivery gates recording
// last_announced. Unlocked is nil when no arcs are unlocked yet.
type ArcParts struct {
	Header   sender.Message
	Unlocked *sender.Message
	Locked   sender.Message
	Footer   sender.Message
}

// Arc builds the announcement for a newly locked arc from the updated
// history.
func Arc(title string, novel config.Novel, host string, h *state.ArcHistory, newArc string) ArcParts {
	header := fmt.Sprintf(
		"## <a:announcement:1365566215975731274> NEW ARC ALERT "+
			"<a:pinksparkles:1365566023201198161>"+
			"<a:Butterfly:1365572264774471700>"+
			"<a:pinksparkles:1365566023201198161>\n"+
			"***<:babypinkarrowleft:1365566594503147550>"+
			"<:world_01:1368202193038999562>"+
			"<:world_02:1368202204468613162> %s"+
			"<:babypinkarrowright:1365566635838275595>is Live for*** "+
			"<a:pinkloading:1365566815736172637>\n"+
			"### [%s](%s) <a:Turtle_Police:1365223650466205738>\n"+
			"❀° ┄───────────────────────╮",
		numberEmoji(track.ArcNumber(newArc)), title, novel.NovelURL,
	)

	parts := ArcParts{
		Header: sender.Message{Content: header, SuppressEmbeds: true},
	}

	if len(h.Unlocked) > 0 {
		lines := make([]string, len(h.Unlocked))
		for i, label := range h.Unlocked {
			lines[i] = formatArcLine(label)
		}
		parts.Unlocked = &sender.Message{
			Content: "<a:5693pinkwings:1368138669004820500> `Unlocked 🔓` <a:5046_bounce_pink:1368138460027813888>",
			Embed:   &sender.Embed{Description: strings.Join(lines, "\n"), Color: colorFree},
		}
	}

	locked := make([]string, len(h.Locked))
	for i, label := range h.Locked {
		locked[i] = formatArcLine(label)
	}
	if len(locked) > 0 {
		locked[len(locked)-1] = "<a:9410pinkarrow:1368139217556996117>" + locked[len(locked)-1]
	}
	lockedMD := "None"
	if len(locked) > 0 {
		lockedMD = strings.Join(locked, "\n")
	}
	parts.Locked = sender.Message{
		Content: "<a:5693pinkwings:1368138669004820500> `Locked 🔐` <a:5046_bounce_pink:1368138460027813888>",
		Embed:   &sender.Embed{Description: "||" + lockedMD + "||", Color: colorPaid},
	}

	parts.Footer = sender.Message{
		Content: "╰───────────────────────┄ °❀\n" +
			fmt.Sprintf("> *Advance access is ready for you on %s! "+
				"<a:holo_diamond:1365566087277711430>*\n", host) +
			strings.Repeat("<:pinkdiamond_border:1365575603734183936>", 6),
		SuppressEmbeds: true,
	}
	return parts
}

// Extras renders the one-time extras/side-stories announcement.
func Extras(title string, novel config.Novel, host string, d track.ExtrasDecision) sender.Message {
	var labelParts []string
	if d.TotalExtras == 1 {
		labelParts = append(labelParts, "EXTRA")
	} else if d.TotalExtras > 1 {
		labelParts = append(labelParts, "EXTRAS")
	}
	if d.TotalSS == 1 {
		labelParts = append(labelParts, "SIDE STORY")
	} else if d.TotalSS > 1 {
		labelParts = append(labelParts, "SIDE STORIES")
	}
	dispLabel := "BONUS CONTENT"
	if len(labelParts) > 0 {
		dispLabel = strings.Join(labelParts, " + ")
	}

	var dropped string
	switch {
	case d.NewExtras && !d.NewSS:
		switch {
		case d.MaxExtras == 1:
			dropped = "The first of those extras just dropped"
		case !d.AllExtrasOut():
			dropped = "New extras just dropped"
		default:
			dropped = "All extras just dropped"
		}
	case d.NewSS && !d.NewExtras:
		switch {
		case d.MaxSS == 1:
			dropped = "The first of those side stories just dropped"
		case !d.AllSSOut():
			dropped = "New side stories just dropped"
		default:
			dropped = "All side stories just dropped"
		}
	default:
		if d.AllExtrasOut() && d.AllSSOut() {
			dropped = "All extras and side stories just dropped"
		} else {
			dropped = "New extras and side stories just dropped"
		}
	}

	base := fmt.Sprintf("<:babypinkarrowleft:1365566594503147550>***[%s](%s)***<:babypinkarrowright:1365566635838275595>",
		title, novel.NovelURL)
	extraLabel := countLabel(d.TotalExtras, "extra", "extras")
	ssLabel := countLabel(d.TotalSS, "side story", "side stories")

	var remaining string
	const cowboy = "<:turtle_cowboy2:1365266375274266695>"
	switch {
	case d.TotalExtras > 0 && d.TotalSS > 0:
		remaining = fmt.Sprintf("%s is almost at the very end — just %d %s and %d %s left before we wrap up this journey for good  %s",
			base, d.TotalExtras, extraLabel, d.TotalSS, ssLabel, cowboy)
	case d.TotalExtras > 0:
		remaining = fmt.Sprintf("%s is almost at the very end — just %d %s left before we wrap up this journey for good  %s",
			base, d.TotalExtras, extraLabel, cowboy)
	case d.TotalSS > 0:
		remaining = fmt.Sprintf("%s is almost at the very end — just %d %s left before we wrap up this journey for good  %s",
			base, d.TotalSS, ssLabel, cowboy)
	default:
		remaining = fmt.Sprintf("%s is at the very end — no extras or side stories left!  %s", base, cowboy)
	}

	content := fmt.Sprintf(
		"## :lotus:<a:greensparklingstars:1365569873845157918>NEW %s JUST DROPPED"+
			"<a:greensparklingstars:1365569873845157918>:lotus:\n%s\n"+
			"%s in %s's advance access today. "+
			"Thanks for sticking with this one ‘til the end. It means a lot. "+
			"Please show your final love and support by leaving comments on the site~ "+
			"<:turtlelovefamily:1365266991690285156> :heart_hands:",
		dispLabel, remaining, dropped, host,
	)
	return sender.Message{Content: content, SuppressEmbeds: true}
}

func countLabel(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// Completion renders one of the three completion walls.
func Completion(kind track.CompletionKind, title string, novel config.Novel, host string, roles config.Roles, chapter feed.Entry, duration string) sender.Message {
	role := strings.TrimSpace(novel.RoleMention)
	count := novel.ChapterCount
	if count == "" {
		count = "the entire series"
	}
	chapText := strings.ReplaceAll(chapter.ChapterName, " ", " ")
	divider := strings.Repeat("<:purple_divider1:1365652778957144165>", 10)
	pinkDivider := strings.Repeat("<:FF_Divider_Pink:1365575626194681936>", 5)

	var header, body string
	switch kind {
	case track.FreeCompletion:
		header = "## 𐔌  Announcing: Complete Series Unlocked ,, :cherries: — 𝝑𝝔  ꒱"
		body = fmt.Sprintf(
			"*All %s has been unlocked and ready for you to binge—completely free!\n"+
				"Thank you all for your amazing support   "+
				"<:green_turtle_heart:1365264636064305203>\n"+
				"Head over to %s to dive straight in~*"+
				"<a:Heart:1365575427724283944><a:Paws:1365676154865979453>",
			count, host)
	case track.OnlyFreeCompletion:
		header = "## ⁺‧ ༻•┈๑☽₊˚ ⌞Completion Announcement⋆ཋྀ ˚₊‧⁺ :kiwi: ∗༉‧₊˚"
		body = fmt.Sprintf(
			"*The last chapter, [%s](%s), has now been released. "+
				"<a:turtle_hyper:1365223449827737630>\n"+
				"After %s of updates, %s is now fully translated with %s! "+
				"Thank you for coming on this journey and for your continued "+
				"support <:luv_turtle:1365263712549736448> You can now visit %s "+
				"to binge on all the releases~*<a:Heart:1365575427724283944>"+
				"<a:Paws:1365676154865979453>",
			chapText, chapter.Link, duration, title, count, host)
	default:
		header = "## ꧁ᐟᐟ ◌ೄ⟢  Completion Announcement  :blueberries: ˚. ᵎᵎ˖ˎˊ-"
		body = fmt.Sprintf(
			"*The last chapter, [%s](%s), has now been released. "+
				"<a:turtle_hyper:1365223449827737630>\n"+
				"After %s of updates, %s is now fully translated with %s! "+
				"Thank you for coming on this journey and for your continued "+
				"support <:turtle_plead:1365223487274352670> You can now visit %s "+
				"to binge all advance releases~*<a:Heart:1365575427724283944>"+
				"<a:Paws:1365676154865979453>",
			chapText, chapter.Link, duration, title, count, host)
	}

	suffix := "officially completed!"
	if kind == track.FreeCompletion {
		suffix = "complete access granted!"
	}

	content := fmt.Sprintf(
		"%s | %s <a:HappyCloud:1365575487333859398>\n%s\n%s\n"+
			"***<a:kikilts_bracket:1365693072138174525>[%s](%s)"+
			"<a:lalalts_bracket:1365693058905014313> — %s*** "+
			"<a:cowiggle:1368136766791483472><a:whitesparkles:1365569806966853664>\n\n"+
			"%s\n%s\n"+
			"-# Check out other translated projects at %s and react "+
			"to get the latest updates <a:LoveLetter:1365575475841339435>",
		role, roles.Completed, header, divider,
		title, novel.NovelURL, suffix,
		body, pinkDivider, novel.RoleURL,
	)
	return sender.Message{
		Content:        content,
		SuppressEmbeds: true,
		Mentions:       sender.Mentions{Roles: true},
	}
}

// Launch renders the one-time new-series announcement: role-ping line,
// sparkle wall, and a rich embed with the cleaned blurb and cover.
func Launch(title string, novel config.Novel, host config.Host, hostName string, roles config.Roles, chapter feed.Entry) sender.Message {
	pingLine := launchPings(novel, roles)
	chapDisplay := strings.TrimSpace(strings.ReplaceAll(chapter.ChapterName, " ", " "))

	content := fmt.Sprintf(
		"%s <a:Bow:1365575505171976246>\n"+
			"## ꉂ`:fish_cake: ･ﾟ✧ New Series Launch ִֶָ. ..𓂃 ࣪ ִֶָ:wing:་༘࿐<a:1678whalepink:1368136879857205308>\n"+
			"***<a:kikilts_bracket:1365693072138174525>[%s](%s)<a:lalalts_bracket:1365693058905014313>*** — now officially added to cannibal turtle's lineup! <a:1620cupcakepink:1368136855903801404><a:Stars:1365568624466722816> \n\n"+
			"[%s](%s), is out on %s. "+
			"Please give lots of love to our new baby and welcome it to the server "+
			"<a:hellokittydance:1365566988826705960>\n"+
			"Updates will continue regularly, so hop in early and start reading now <a:2713pandaroll:1368137698212184136> \n"+
			"%s\n"+
			"-# To get pings for new chapters, head to %s and react for the role %s",
		pingLine, title, novel.NovelURL, chapDisplay, chapter.Link, hostName,
		strings.Repeat("<a:6535_flower_border:1368146360871948321>", 10),
		novel.RoleURL, novel.CustomEmoji,
	)

	embed := &sender.Embed{
		AuthorName:  host.Translator + " ⋆. 𐙚",
		Title:       title,
		URL:         novel.NovelURL,
		Description: CleanDescription(chapter.Description),
		Image:       novel.FeaturedImage,
		FooterText:  hostName,
		FooterIcon:  host.HostLogo,
		Color:       colorLaunch,
		Timestamp:   chapter.Published,
	}

	return sender.Message{
		Content:  content,
		Embed:    embed,
		Mentions: sender.Mentions{Roles: true},
	}
}

// launchPings assembles the role-ping line: global launch role, the
// novel's extra roles in their configured order, NSFW role always last.
func launchPings(novel config.Novel, roles config.Roles) string {
	var parts []string
	if roles.NewNovels != "" {
		parts = append(parts, strings.TrimSpace(roles.NewNovels))
	}
	if novel.ExtraPingRoles != "" {
		parts = append(parts, strings.TrimSpace(novel.ExtraPingRoles))
	}
	if novel.NSFW && roles.NSFW != "" {
		parts = append(parts, roles.NSFW)
	}
	return strings.Join(parts, " ")
}

var (
	spaceRunRe    = regexp.MustCompile(`[ \t]+`)
	aroundLineRe  = regexp.MustCompile(`\s*\n\s*`)
	maxBlurbRunes = 4000
)

// CleanDescription turns a feed entry's HTML blurb into clean embed
// text: everything after the first <hr> is dropped (promo links live
// there), tags are stripped, entities unescaped, whitespace squashed,
// and the result capped under Discord's embed description limit.
func CleanDescription(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	if hr := doc.Find("hr").First(); hr.Length() > 0 {
		hr.NextAll().Remove()
		hr.Remove()
	}
	text := doc.Text()
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = aroundLineRe.ReplaceAllString(text, "\n")
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > maxBlurbRunes {
		text = strings.TrimRight(string(runes[:maxBlurbRunes]), " ") + "…"
	}
	return text
}
