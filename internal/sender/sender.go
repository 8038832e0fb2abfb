// Package sender defines a transport-agnostic outbound message contract.
//
// Composers build Messages, pipelines hand them to a Sender. Keeping the
// contract free of any Discord types lets the reconciliation loops be tested
// against fakes.
package sender

import "time"

// Sender delivers a composed message to a destination channel or thread.
type Sender interface {
	// Send posts msg to the destination. It returns a non-nil error when the
	// message could not be delivered after the client's bounded retries; the
	// caller must then skip the item without advancing its checkpoint.
	Send(destID string, msg Message) error

	// Prepare makes a destination postable: for threads, join it and (when
	// enabled) unarchive it. It reports whether sending is worth attempting.
	Prepare(destID string) bool
}

// Creator can allocate a brand-new destination thread on demand.
type Creator interface {
	// CreateThread creates a thread named label under the given parent
	// channel and returns its id.
	CreateThread(parentID, label string) (string, error)
}

// Message is a transport-agnostic outgoing message: text content, at most
// one rich embed, and zero or more link buttons.
type Message struct {
	Content        string
	Embed          *Embed
	Buttons        []Button
	Mentions       Mentions
	SuppressEmbeds bool // suppress link previews generated from Content
}

// Embed is a rich-embed attachment.
type Embed struct {
	AuthorName  string
	AuthorURL   string
	Title       string
	URL         string
	Description string
	Thumbnail   string
	Image       string
	FooterText  string
	FooterIcon  string
	Color       int
	Timestamp   time.Time // zero means no timestamp
}

// Button is an interactive link button attached below the message.
type Button struct {
	Label string
	URL   string
	Emoji string // raw emoji string, e.g. "<a:name:id>" or a unicode emoji
}

// Mentions is the explicit allow-list of who a message may ping.
// The zero value pings nobody, which is the baseline policy.
type Mentions struct {
	Users []string
	Roles bool // allow role mentions present in the content
}
