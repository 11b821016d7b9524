package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/polzovatel/inbox-responder/internal/journal"
	"github.com/polzovatel/inbox-responder/internal/reply"
)

var errMissing = errors.New("element not found")

// fakePage is an in-memory Page. Elements exist when their count is > 0.
type fakePage struct {
	mu         sync.Mutex
	counts     map[string]int
	texts      map[string]string
	attrs      map[string]string
	childAttrs map[string]string
	clickErr   map[string]error
	fillErr    error

	clicks  []string
	filled  []string
	onClick func(selector string, index int)
}

func newFakePage() *fakePage {
	return &fakePage{
		counts:     map[string]int{},
		texts:      map[string]string{},
		attrs:      map[string]string{},
		childAttrs: map[string]string{},
		clickErr:   map[string]error{},
	}
}

func clickKey(selector string, index int) string {
	return fmt.Sprintf("%s#%d", selector, index)
}

func (p *fakePage) Exists(ctx context.Context, selector string) (bool, error) {
	n, err := p.Count(ctx, selector)
	return n > 0, err
}

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[selector], ctx.Err()
}

func (p *fakePage) Click(ctx context.Context, selector string, index int) error {
	p.mu.Lock()
	err := p.clickErr[selector]
	n := p.counts[selector]
	hook := p.onClick
	if err == nil && n == 0 {
		err = errMissing
	}
	if err == nil {
		p.clicks = append(p.clicks, clickKey(selector, index))
	}
	p.mu.Unlock()
	if err == nil && hook != nil {
		hook(selector, index)
	}
	return err
}

func (p *fakePage) Text(ctx context.Context, selector string, index int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[selector] == 0 {
		return "", errMissing
	}
	return p.texts[selector], nil
}

func (p *fakePage) Attr(ctx context.Context, selector string, index int, attr string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[selector] == 0 {
		return "", errMissing
	}
	return p.attrs[selector+"|"+attr], nil
}

func (p *fakePage) ChildAttr(ctx context.Context, selector string, index int, child, attr string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[selector] == 0 {
		return "", errMissing
	}
	return p.childAttrs[selector+" "+child+"|"+attr], nil
}

func (p *fakePage) Fill(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fillErr != nil {
		return p.fillErr
	}
	if p.counts[selector] == 0 {
		return errMissing
	}
	p.filled = append(p.filled, text)
	return nil
}

func (p *fakePage) set(fn func(p *fakePage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakePage) clickLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *fakePage) fillLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.filled...)
}

func (p *fakePage) clickCount(selector string) int {
	n := 0
	for _, c := range p.clickLog() {
		if len(c) > len(selector) && c[:len(selector)] == selector && c[len(selector)] == '#' {
			n++
		}
	}
	return n
}

const (
	otherProfile = "https://www.linkedin.com/in/jane-doe/"
	ownProfile   = "https://www.linkedin.com/in/me/"
)

// threadPage builds a page showing one open thread whose last event is text
// from the participant behind lastHref.
func threadPage(sel Selectors, sender, text, lastHref string, links int) *fakePage {
	p := newFakePage()
	p.counts[sel.ConversationItem] = 3
	p.counts[sel.EventLink] = links
	p.counts[sel.MessageBubble] = links
	p.counts[sel.ThreadProfile] = 1
	p.counts[sel.ComposeField] = 1
	p.counts[sel.SendButton] = 1
	p.counts[sel.OverlayControls] = 1
	p.counts[sel.DropdownItem] = 4
	p.texts[sel.MessageBubble] = text
	p.attrs[sel.EventLink+"|href"] = lastHref
	p.attrs[sel.ThreadProfile+"|href"] = otherProfile
	p.childAttrs[sel.EventLink+" "+sel.EventLinkImage+"|title"] = sender
	return p
}

// fastTimings keeps every wait short enough for unit tests.
func fastTimings() Timings {
	return Timings{
		DeliverySettle: 20 * time.Millisecond,
		StaleAfter:     time.Hour,
		CheckSpacing:   0,
		DirectSpacing:  0,
		StageDelay:     time.Millisecond,
		RecoverySettle: time.Millisecond,
		SweepInterval:  time.Hour,
		ThreadRender:   time.Millisecond,
		ComposeDelay:   time.Millisecond,
	}
}

type fakeSelector struct {
	mu    sync.Mutex
	text  string
	ok    bool
	err   error
	calls int
	hook  func()
}

func (s *fakeSelector) Select(ctx context.Context, obs reply.Observation) (string, bool, error) {
	s.mu.Lock()
	s.calls++
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.text, s.ok, s.err
}

func (s *fakeSelector) Backend() string { return "fake" }

func (s *fakeSelector) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *fakeRecorder) Record(ctx context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRecorder) all() []journal.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Entry(nil), r.entries...)
}
