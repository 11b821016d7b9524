package inbox

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestDispatcher_Send(t *testing.T) {
	sel := DefaultSelectors()
	p := threadPage(sel, "Jane Doe", "Hello, are you available?", otherProfile, 2)
	text := "Hi Jane,\nthanks for reaching out.\n\n— Bot"

	if err := NewDispatcher(p, sel, fastTimings()).Send(context.Background(), text); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := []string{
		clickKey(sel.ConversationItem, 0),
		clickKey(sel.ComposeField, 0),
		clickKey(sel.SendButton, 0),
	}
	if got := p.clickLog(); !reflect.DeepEqual(got, want) {
		t.Fatalf("clicks = %v, want %v", got, want)
	}
	if got := p.fillLog(); len(got) != 1 || got[0] != text {
		t.Fatalf("filled = %q", got)
	}
}

func TestDispatcher_FillFailureDoesNotSubmit(t *testing.T) {
	sel := DefaultSelectors()
	p := threadPage(sel, "Jane Doe", "Hello, are you available?", otherProfile, 2)
	p.fillErr = errors.New("not editable")

	err := NewDispatcher(p, sel, fastTimings()).Send(context.Background(), "Hi")
	if err == nil || !errors.Is(err, p.fillErr) {
		t.Fatalf("Send = %v", err)
	}
	if p.clickCount(sel.SendButton) != 0 {
		t.Fatalf("send clicked after a failed fill")
	}
}

func TestDispatcher_MissingConversation(t *testing.T) {
	sel := DefaultSelectors()
	p := threadPage(sel, "Jane Doe", "Hello, are you available?", otherProfile, 2)
	p.set(func(p *fakePage) { p.counts[sel.ConversationItem] = 0 })

	if err := NewDispatcher(p, sel, fastTimings()).Send(context.Background(), "Hi"); !errors.Is(err, errMissing) {
		t.Fatalf("Send = %v, want errMissing", err)
	}
	if len(p.fillLog()) != 0 {
		t.Fatalf("filled without an open conversation")
	}
}
