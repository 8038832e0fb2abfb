// Package discord implements message delivery over the Discord REST API.
//
// Only REST is used; the bot never opens a gateway session. Retry policy
// per item: one remediation (join/unarchive) plus one retry for
// destination-not-ready errors, one bounded wait plus one retry for rate
// limits, everything else terminal.
package discord

import (
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cannibal-turtle/mistmint-bot/internal/sender"
)

// Longest auto-archive window; servers that disallow it get a retry
// without the duration field.
const autoArchiveMinutes = 10080

const maxRateLimitWait = 5 * time.Second

// Client posts messages to channels and threads. It implements
// sender.Sender and sender.Creator.
type Client struct {
	session   *discordgo.Session
	unarchive bool

	// Seams for tests, in place of live REST calls.
	post         func(channelID string, data *discordgo.MessageSend) error
	threadMember func(threadID string) error
	threadJoin   func(threadID string) error
	channelEdit  func(channelID string, edit *discordgo.ChannelEdit) error
	threadStart  func(parentID, name string) (string, error)
	sleep        func(time.Duration)
}

// New returns a Client authenticated with the given bot token. When
// unarchive is set, Prepare also unarchives and unlocks archived threads
// (needs the Manage Threads permission).
func New(token string, unarchive bool) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bot token")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	// Rate limits are handled here, bounded, not by the library.
	session.ShouldRetryOnRateLimit = false

	c := &Client{session: session, unarchive: unarchive, sleep: time.Sleep}
	c.post = func(channelID string, data *discordgo.MessageSend) error {
		_, err := session.ChannelMessageSendComplex(channelID, data)
		return err
	}
	c.threadMember = func(threadID string) error {
		_, err := session.ThreadMember(threadID, "@me", false)
		return err
	}
	c.threadJoin = func(threadID string) error {
		return session.ThreadJoin(threadID)
	}
	c.channelEdit = func(channelID string, edit *discordgo.ChannelEdit) error {
		_, err := session.ChannelEdit(channelID, edit)
		return err
	}
	c.threadStart = func(parentID, name string) (string, error) {
		ch, err := session.ThreadStart(parentID, name, discordgo.ChannelTypeGuildPublicThread, autoArchiveMinutes)
		if err != nil {
			return "", err
		}
		return ch.ID, nil
	}
	return c, nil
}

// Send posts one message. At most one successful network post happens
// per call; failures after the bounded retries are returned to the
// caller, which must not advance its checkpoint for the item.
func (c *Client) Send(destID string, msg sender.Message) error {
	data := buildSend(msg)

	err := c.post(destID, data)
	if err == nil {
		return nil
	}

	if notReady(err) {
		if !c.remediate(destID) {
			return fmt.Errorf("destination %s not ready: %w", destID, err)
		}
		if err = c.post(destID, data); err == nil {
			return nil
		}
	}

	if wait, limited := rateLimited(err); limited {
		c.sleep(wait)
		err = c.post(destID, data)
	}
	return err
}

// Prepare joins a thread destination and, if enabled, unarchives it.
// Plain channels pass through: membership checks 404 on them, and the
// join failure is non-fatal for sending.
func (c *Client) Prepare(destID string) bool {
	if err := c.threadMember(destID); err != nil {
		if err := c.threadJoin(destID); err != nil {
			log.Printf("Joining thread %s: %v", destID, err)
		}
	}
	if c.unarchive {
		return c.doUnarchive(destID)
	}
	return true
}

// CreateThread creates a public thread named label under parentID.
func (c *Client) CreateThread(parentID, label string) (string, error) {
	return c.threadStart(parentID, label)
}

// remediate makes exactly one attempt to fix a not-ready destination.
func (c *Client) remediate(destID string) bool {
	joined := c.threadJoin(destID) == nil
	if c.unarchive {
		return c.doUnarchive(destID) || joined
	}
	return joined
}

func (c *Client) doUnarchive(destID string) bool {
	archived, locked := false, false
	err := c.channelEdit(destID, &discordgo.ChannelEdit{
		Archived:            &archived,
		Locked:              &locked,
		AutoArchiveDuration: autoArchiveMinutes,
	})
	if err == nil {
		return true
	}
	// Some servers reject the 7-day window; retry without touching it.
	if err := c.channelEdit(destID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	}); err != nil {
		log.Printf("Unarchiving %s: %v", destID, err)
		return false
	}
	return true
}

func buildSend(msg sender.Message) *discordgo.MessageSend {
	data := &discordgo.MessageSend{
		Content:         msg.Content,
		AllowedMentions: allowedMentions(msg.Mentions),
	}
	if msg.SuppressEmbeds {
		data.Flags = discordgo.MessageFlagsSuppressEmbeds
	}
	if msg.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{buildEmbed(msg.Embed)}
	}
	if row := buildButtons(msg.Buttons); row != nil {
		data.Components = []discordgo.MessageComponent{row}
	}
	return data
}

func allowedMentions(m sender.Mentions) *discordgo.MessageAllowedMentions {
	allowed := &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
	if len(m.Users) > 0 {
		allowed.Users = m.Users
	}
	if m.Roles {
		allowed.Parse = append(allowed.Parse, discordgo.AllowedMentionTypeRoles)
	}
	return allowed
}

func buildEmbed(e *sender.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		URL:         e.URL,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, URL: e.AuthorURL}
	}
	if e.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.Image}
	}
	if e.FooterText != "" || e.FooterIcon != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.FooterText, IconURL: e.FooterIcon}
	}
	if !e.Timestamp.IsZero() {
		embed.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return embed
}

func buildButtons(buttons []sender.Button) discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		btn := discordgo.Button{
			Label: b.Label,
			Style: discordgo.LinkButton,
			URL:   b.URL,
			Emoji: ParseEmoji(b.Emoji),
		}
		if btn.Label == "" && btn.Emoji == nil {
			btn.Label = "Read here"
		}
		row.Components = append(row.Components, btn)
	}
	return row
}

var customEmojiRe = regexp.MustCompile(`^<(a?):([A-Za-z0-9_]+):(\d+)>$`)

// ParseEmoji turns a raw emoji string into a component emoji: either a
// custom "<a:name:id>" form or a short unicode emoji. Anything else
// yields nil.
func ParseEmoji(raw string) *discordgo.ComponentEmoji {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if m := customEmojiRe.FindStringSubmatch(s); m != nil {
		return &discordgo.ComponentEmoji{
			Name:     m[2],
			ID:       m[3],
			Animated: m[1] == "a",
		}
	}
	if !strings.ContainsAny(s, "<>:") && len(s) <= 8 {
		return &discordgo.ComponentEmoji{Name: s}
	}
	return nil
}

// notReady classifies errors fixable by joining or unarchiving the
// destination: HTTP 400/403 with a missing-access code or an archived
// thread complaint.
func notReady(err error) bool {
	restErr, ok := err.(*discordgo.RESTError)
	if !ok || restErr.Response == nil {
		return false
	}
	status := restErr.Response.StatusCode
	if status != http.StatusBadRequest && status != http.StatusForbidden {
		return false
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return true
		}
		if strings.Contains(strings.ToLower(restErr.Message.Message), "archiv") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(string(restErr.ResponseBody)), "missing access")
}

// rateLimited extracts the server-advised wait from a 429, capped at
// maxRateLimitWait.
func rateLimited(err error) (time.Duration, bool) {
	rl, ok := err.(*discordgo.RateLimitError)
	if !ok {
		return 0, false
	}
	wait := rl.RetryAfter
	if wait <= 0 {
		wait = time.Second
	}
	if wait > maxRateLimitWait {
		wait = maxRateLimitWait
	}
	return wait, true
}

var (
	_ sender.Sender  = (*Client)(nil)
	_ sender.Creator = (*Client)(nil)
)
