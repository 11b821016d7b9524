// Package session signs the browser into the messaging site and keeps its
// cookies on disk.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const HomeURL = "https://www.linkedin.com/"

var (
	// ErrAuthFailed means the site rejected the sign-in or it never reached
	// the inbox.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrVerificationRequired means the site asked for a CAPTCHA that
	// nobody can solve in this run.
	ErrVerificationRequired = errors.New("verification challenge")
)

// Page is the part of the browser controller sign-in needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string, index int) error
	Text(ctx context.Context, selector string, index int) (string, error)
	Fill(ctx context.Context, selector, text string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
}

type Selectors struct {
	LoginField    string
	PasswordField string
	Submit        string
	Alert         string
	MessagingNav  string
	Conversations string
	Captcha       string
}

func DefaultSelectors() Selectors {
	return Selectors{
		LoginField:    `input[name="session_key"]`,
		PasswordField: `input[name="session_password"]`,
		Submit:        `button[type="submit"]`,
		Alert:         `.alert-content`,
		MessagingNav:  `a.global-nav__primary-link[href*="messaging"]`,
		Conversations: `.msg-conversation-listitem`,
		Captcha:       `#captcha-internal`,
	}
}

type Options struct {
	Mail     string
	Password string
	// Attended means a person watches the browser window and can solve a
	// verification challenge.
	Attended bool

	Selectors Selectors
	// Probe bounds each wait for an optional element. Defaults to 5s.
	Probe time.Duration
	// InboxTimeout bounds the wait for the conversation list. Defaults to 30s.
	InboxTimeout time.Duration
	// Grace is how long an attended run waits for a challenge to be solved.
	// Defaults to 10s.
	Grace time.Duration
}

func (o *Options) defaults() {
	if o.Selectors == (Selectors{}) {
		o.Selectors = DefaultSelectors()
	}
	if o.Probe <= 0 {
		o.Probe = 5 * time.Second
	}
	if o.InboxTimeout <= 0 {
		o.InboxTimeout = 30 * time.Second
	}
	if o.Grace <= 0 {
		o.Grace = 10 * time.Second
	}
}

// SignIn opens the site, submits credentials when the login form is shown
// (restored cookies usually skip it) and navigates to the inbox.
func SignIn(ctx context.Context, page Page, opts Options, logger zerolog.Logger) error {
	opts.defaults()
	sel := opts.Selectors

	if err := page.Navigate(ctx, HomeURL); err != nil {
		return fmt.Errorf("open home: %w", err)
	}

	if page.WaitFor(ctx, sel.LoginField, opts.Probe) == nil {
		if opts.Mail == "" || opts.Password == "" {
			return fmt.Errorf("%w: login form shown but no credentials configured", ErrAuthFailed)
		}
		logger.Info().Str("mail", opts.Mail).Msg("submitting credentials")
		if err := submit(ctx, page, sel, opts); err != nil {
			return err
		}
		if msg, ok := alert(ctx, page, sel); ok {
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		}
	} else {
		logger.Debug().Msg("login form absent, using stored session")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := openInbox(ctx, page, sel, opts)
	if err == nil {
		logger.Info().Msg("inbox open")
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if msg, ok := alert(ctx, page, sel); ok {
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	}
	if page.WaitFor(ctx, sel.Captcha, opts.Probe) != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !opts.Attended {
		return fmt.Errorf("%w: run with a visible browser and solve it", ErrVerificationRequired)
	}

	logger.Warn().Dur("grace", opts.Grace).Msg("captcha detected, solve it in the browser window")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(opts.Grace):
	}
	if err := openInbox(ctx, page, sel, opts); err != nil {
		return fmt.Errorf("%w: still unresolved after %s: %v", ErrVerificationRequired, opts.Grace, err)
	}
	logger.Info().Msg("inbox open")
	return nil
}

func submit(ctx context.Context, page Page, sel Selectors, opts Options) error {
	if err := page.Fill(ctx, sel.LoginField, opts.Mail); err != nil {
		return fmt.Errorf("fill login: %w", err)
	}
	if err := page.Fill(ctx, sel.PasswordField, opts.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := page.Click(ctx, sel.Submit, 0); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	return nil
}

func openInbox(ctx context.Context, page Page, sel Selectors, opts Options) error {
	if err := page.WaitFor(ctx, sel.MessagingNav, opts.Probe); err != nil {
		return fmt.Errorf("messaging link: %w", err)
	}
	if err := page.Click(ctx, sel.MessagingNav, 0); err != nil {
		return fmt.Errorf("open messaging: %w", err)
	}
	if err := page.WaitFor(ctx, sel.Conversations, opts.InboxTimeout); err != nil {
		return fmt.Errorf("conversation list: %w", err)
	}
	return nil
}

// alert returns the visible sign-in error, if any.
func alert(ctx context.Context, page Page, sel Selectors) (string, bool) {
	ok, err := page.Exists(ctx, sel.Alert)
	if err != nil || !ok {
		return "", false
	}
	text, err := page.Text(ctx, sel.Alert, 0)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		return "sign-in rejected", true
	}
	return text, true
}
