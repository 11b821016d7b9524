package inbox

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/polzovatel/inbox-responder/internal/reply"
)

// Outcome classifies one extraction attempt.
type Outcome int

const (
	OutcomeObserved Outcome = iota
	// OutcomeMiss means the thread was not (fully) rendered; nothing new.
	OutcomeMiss
	OutcomeTooShort
	OutcomeOwnMessage
)

func (o Outcome) String() string {
	switch o {
	case OutcomeObserved:
		return "observed"
	case OutcomeTooShort:
		return "too_short"
	case OutcomeOwnMessage:
		return "own_message"
	default:
		return "miss"
	}
}

// firstContactEvents is the largest number of participant links a thread can
// show and still be a first contact.
const firstContactEvents = 2

// Extractor reads the latest event of the first conversation.
type Extractor struct {
	page      Page
	sel       Selectors
	timings   Timings
	minLength int
	now       func() time.Time
}

func NewExtractor(page Page, sel Selectors, t Timings, minLength int, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{page: page, sel: sel, timings: t, minLength: minLength, now: now}
}

// Extract opens the first conversation and returns an observation when its
// last event is a long enough message from the other participant. Missing
// elements give OutcomeMiss with a nil error; a non-nil error means a read
// failed on an element that was present.
func (e *Extractor) Extract(ctx context.Context) (reply.Observation, Outcome, error) {
	if err := e.page.Click(ctx, e.sel.ConversationItem, 0); err != nil {
		return reply.Observation{}, OutcomeMiss, nil
	}
	if err := sleep(ctx, e.timings.ThreadRender); err != nil {
		return reply.Observation{}, OutcomeMiss, err
	}

	links, err := e.page.Count(ctx, e.sel.EventLink)
	if err != nil || links == 0 {
		return reply.Observation{}, OutcomeMiss, err
	}
	bubbles, err := e.page.Count(ctx, e.sel.MessageBubble)
	if err != nil || bubbles == 0 {
		return reply.Observation{}, OutcomeMiss, err
	}
	hasProfile, err := e.page.Exists(ctx, e.sel.ThreadProfile)
	if err != nil || !hasProfile {
		return reply.Observation{}, OutcomeMiss, err
	}

	text, err := e.page.Text(ctx, e.sel.MessageBubble, -1)
	if err != nil {
		return reply.Observation{}, OutcomeMiss, fmt.Errorf("read last message: %w", err)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= e.minLength {
		return reply.Observation{}, OutcomeTooShort, nil
	}

	lastHref, err := e.page.Attr(ctx, e.sel.EventLink, -1, "href")
	if err != nil {
		return reply.Observation{}, OutcomeMiss, fmt.Errorf("read last participant: %w", err)
	}
	profileHref, err := e.page.Attr(ctx, e.sel.ThreadProfile, 0, "href")
	if err != nil {
		return reply.Observation{}, OutcomeMiss, fmt.Errorf("read thread profile: %w", err)
	}
	if !sameProfile(lastHref, profileHref) {
		return reply.Observation{}, OutcomeOwnMessage, nil
	}

	name, err := e.page.ChildAttr(ctx, e.sel.EventLink, -1, e.sel.EventLinkImage, "title")
	if err != nil {
		return reply.Observation{}, OutcomeMiss, fmt.Errorf("read sender name: %w", err)
	}

	return reply.Observation{
		SenderName:   strings.TrimSpace(name),
		MessageText:  text,
		FirstMessage: links <= firstContactEvents,
		ObservedAt:   e.now(),
	}, OutcomeObserved, nil
}

// sameProfile compares two profile links ignoring host, query, fragment and
// trailing slash, since the thread header and event list format them
// differently.
func sameProfile(a, b string) bool {
	na, nb := profilePath(a), profilePath(b)
	return na != "" && na == nb
}

func profilePath(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return strings.TrimRight(href, "/")
	}
	return strings.TrimRight(u.Path, "/")
}
