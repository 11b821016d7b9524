// Package inbox detects new messages in the open thread of the messaging
// client and runs one reply cycle at a time against it.
package inbox

import (
	"context"
	"time"
)

// Page is the subset of browser primitives the responder drives. A
// negative index selects the last match. browser.Controller implements it.
type Page interface {
	Exists(ctx context.Context, selector string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string, index int) error
	Text(ctx context.Context, selector string, index int) (string, error)
	Attr(ctx context.Context, selector string, index int, attr string) (string, error)
	ChildAttr(ctx context.Context, selector string, index int, child, attr string) (string, error)
	Fill(ctx context.Context, selector, text string) error
}

// Selectors locate the messaging UI elements.
type Selectors struct {
	ConversationList string
	ConversationItem string

	EventLink      string
	EventLinkImage string
	MessageBubble  string
	ThreadProfile  string

	OverlayMinimized string
	OverlayHeader    string
	OverlayControls  string
	DropdownItem     string
	RefreshOption    int
	RequestsBack     string

	ComposeField string
	SendButton   string
}

// DefaultSelectors targets the LinkedIn messaging overlay and list.
func DefaultSelectors() Selectors {
	return Selectors{
		ConversationList: ".msg-conversations-container__conversations-list",
		ConversationItem: "section.msg__list .msg-conversation-listitem a",

		EventLink:      ".msg-s-message-list-content .msg-s-event-listitem__link",
		EventLinkImage: "img",
		MessageBubble:  ".msg-s-event-listitem__message-bubble",
		ThreadProfile:  ".msg-thread__link-to-profile",

		OverlayMinimized: ".msg-overlay-list-bubble--is-minimized",
		OverlayHeader:    ".msg-overlay-bubble-header__details",
		OverlayControls:  ".msg-overlay-bubble-header__controls button",
		DropdownItem:     ".artdeco-dropdown__item",
		RefreshOption:    2,
		RequestsBack:     ".msg-message-request-list-header-presenter__back-button",

		ComposeField: ".msg-form__contenteditable",
		SendButton:   ".msg-form__send-button",
	}
}

// Timings are the fixed waits between UI steps.
type Timings struct {
	// DeliverySettle is the pause after a delivery signal before deciding.
	DeliverySettle time.Duration
	// StaleAfter is the quiet period after which the list is assumed stale.
	StaleAfter time.Duration
	// CheckSpacing is the minimum gap before a forced extraction, the one
	// that follows a recovery run.
	CheckSpacing time.Duration
	// DirectSpacing is the minimum gap before a direct extraction, the one
	// that follows a settled delivery.
	DirectSpacing time.Duration

	StageDelay     time.Duration
	RecoverySettle time.Duration
	SweepInterval  time.Duration

	ThreadRender time.Duration
	ComposeDelay time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		DeliverySettle: time.Second,
		StaleAfter:     1500 * time.Millisecond,
		CheckSpacing:   time.Second,
		DirectSpacing:  5 * time.Second,
		StageDelay:     500 * time.Millisecond,
		RecoverySettle: time.Second,
		SweepInterval:  30 * time.Second,
		ThreadRender:   300 * time.Millisecond,
		ComposeDelay:   500 * time.Millisecond,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
