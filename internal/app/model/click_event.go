package model

import "time"

// Visitor carries the request metadata the host resolved for a click.
type Visitor struct {
	IP        string `json:"ip,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Country   string `json:"country,omitempty"`
}

// LinkCreatedEvent is emitted by the host when a short link is added.
type LinkCreatedEvent struct {
	ID         string    `json:"id"`
	Keyword    string    `json:"keyword,omitempty"`
	URL        string    `json:"url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LinkClickedEvent is emitted by the host right before it redirects a visitor.
// URL and Keyword are kept raw because some hosts send them as objects.
type LinkClickedEvent struct {
	ID         string     `json:"id"`
	URL        EventValue `json:"url"`
	Keyword    EventValue `json:"keyword"`
	Visitor    Visitor    `json:"visitor"`
	OccurredAt time.Time  `json:"occurred_at"`
}

const (
	LinkEventStreamName     = "LINK_EVENTS"
	LinkCreatedSubject      = "links.created"
	LinkClickedSubject      = "links.clicked"
	LinkEventSubjects       = "links.*"
	LinkEventConsumerName   = "clickhook-notifier"
	LinkEventStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
