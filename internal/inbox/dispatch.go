package inbox

import (
	"context"
	"fmt"
)

// Dispatcher types and submits a reply in the first conversation.
type Dispatcher struct {
	page    Page
	sel     Selectors
	timings Timings
}

func NewDispatcher(page Page, sel Selectors, t Timings) *Dispatcher {
	return &Dispatcher{page: page, sel: sel, timings: t}
}

// Send re-opens the conversation before composing, since a recovery run or
// the user may have moved focus since the message was read.
func (d *Dispatcher) Send(ctx context.Context, text string) error {
	if err := d.page.Click(ctx, d.sel.ConversationItem, 0); err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	if err := sleep(ctx, d.timings.ComposeDelay); err != nil {
		return err
	}
	if err := d.page.Click(ctx, d.sel.ComposeField, 0); err != nil {
		return fmt.Errorf("focus compose field: %w", err)
	}
	if err := d.page.Fill(ctx, d.sel.ComposeField, text); err != nil {
		return fmt.Errorf("fill reply: %w", err)
	}
	if err := sleep(ctx, d.timings.ComposeDelay); err != nil {
		return err
	}
	if err := d.page.Click(ctx, d.sel.SendButton, 0); err != nil {
		return fmt.Errorf("submit reply: %w", err)
	}
	return nil
}
