package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	defaultNavTimeout = 30 * time.Second
	defaultActionTime = 3 * time.Second
	viewportWidth     = 1000
	viewportHeight    = 720

	mutationBinding = "__responderMutation"
)

// Controller exposes the browser actions the responder needs. Index
// arguments select among all matches of a selector; a negative index picks
// the last match.
type Controller interface {
	Close(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string, index int) error
	Text(ctx context.Context, selector string, index int) (string, error)
	Attr(ctx context.Context, selector string, index int, attr string) (string, error)
	ChildAttr(ctx context.Context, selector string, index int, child, attr string) (string, error)
	Fill(ctx context.Context, selector, text string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	SaveState(ctx context.Context, path string) error
	// OnRequest calls fn for every request whose URL matches pattern.
	OnRequest(pattern *regexp.Regexp, fn func(url string))
	// WatchMutations calls fn whenever the subtree under selector changes.
	// The element may appear later or be replaced; the watcher re-attaches.
	WatchMutations(ctx context.Context, selector string, fn func()) error
}

// Launcher owns playwright lifecycle.
type Launcher struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	headless bool
}

func NewLauncher(ctx context.Context, headless bool) (*Launcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &Launcher{pw: pw, browser: browser, headless: headless}, nil
}

// Headless reports whether the browser runs without a visible window.
func (l *Launcher) Headless() bool { return l.headless }

// NewController opens a page, restoring cookies from storagePath when the
// file exists.
func (l *Launcher) NewController(ctx context.Context, storagePath string) (Controller, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: viewportWidth, Height: viewportHeight},
	}
	if strings.TrimSpace(storagePath) != "" {
		if _, err := os.Stat(storagePath); err == nil {
			opts.StorageStatePath = playwright.String(storagePath)
		}
	}
	bctx, err := l.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(defaultNavTimeout.Milliseconds()))
	return &controller{context: bctx, page: page}, nil
}

func (l *Launcher) Close() error {
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

type controller struct {
	context playwright.BrowserContext
	page    playwright.Page

	mu        sync.Mutex
	onMutated []func()
	exposed   bool
}

func (c *controller) Close(ctx context.Context) error {
	_ = ctx
	if c.page != nil {
		_ = c.page.Close()
	}
	if c.context != nil {
		return c.context.Close()
	}
	return nil
}

func (c *controller) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(defaultNavTimeout.Milliseconds())),
	})
	return wrap(err)
}

func (c *controller) Exists(ctx context.Context, selector string) (bool, error) {
	n, err := c.Count(ctx, selector)
	return n > 0, err
}

func (c *controller) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.page.Locator(selector).Count()
	return n, wrap(err)
}

func (c *controller) Click(ctx context.Context, selector string, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(c.nth(selector, index).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(defaultActionTime.Milliseconds())),
	}))
}

func (c *controller) Text(ctx context.Context, selector string, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	val, err := c.nth(selector, index).InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(float64(defaultActionTime.Milliseconds())),
	})
	return val, wrap(err)
}

func (c *controller) Attr(ctx context.Context, selector string, index int, attr string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return getAttr(c.nth(selector, index), attr)
}

func (c *controller) ChildAttr(ctx context.Context, selector string, index int, child, attr string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return getAttr(c.nth(selector, index).Locator(child).First(), attr)
}

// Fill replaces the content of an input or contenteditable element. Unlike
// key-by-key typing, newlines in text do not submit the form.
func (c *controller) Fill(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := c.page.Locator(selector).First()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(defaultActionTime.Milliseconds())),
	}); err != nil {
		return wrap(err)
	}
	return wrap(loc.Fill(text))
}

func (c *controller) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultActionTime
	}
	loc := c.page.Locator(selector).First()
	return wrap(loc.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
		State:   playwright.WaitForSelectorStateVisible,
	}))
}

func (c *controller) SaveState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := c.context.StorageState()
	if err != nil {
		return wrap(err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *controller) OnRequest(pattern *regexp.Regexp, fn func(url string)) {
	c.page.OnRequest(func(req playwright.Request) {
		if u := req.URL(); pattern.MatchString(u) {
			fn(u)
		}
	})
}

const mutationScript = `(args) => {
	const [sel, binding] = args;
	if (window.__responderWatching) return;
	window.__responderWatching = true;
	let target = null;
	const observer = new MutationObserver(() => window[binding]());
	const attach = () => {
		const el = document.querySelector(sel);
		if (el && el !== target) {
			observer.disconnect();
			target = el;
			observer.observe(el, {childList: true, subtree: true, characterData: true});
		}
	};
	attach();
	setInterval(attach, 2000);
}`

func (c *controller) WatchMutations(ctx context.Context, selector string, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.onMutated = append(c.onMutated, fn)
	expose := !c.exposed
	c.exposed = true
	c.mu.Unlock()

	if expose {
		err := c.page.ExposeFunction(mutationBinding, func(args ...interface{}) interface{} {
			c.mu.Lock()
			handlers := append([]func(){}, c.onMutated...)
			c.mu.Unlock()
			for _, h := range handlers {
				h()
			}
			return nil
		})
		if err != nil {
			return wrap(err)
		}
	}
	// The init script re-installs the observer after every navigation; the
	// evaluate covers the document that is already loaded.
	src, err := mutationInitScript(selector)
	if err != nil {
		return err
	}
	if err := c.page.AddInitScript(playwright.Script{Content: playwright.String(src)}); err != nil {
		return wrap(err)
	}
	_, err = c.page.Evaluate(mutationScript, []interface{}{selector, mutationBinding})
	return wrap(err)
}

// mutationInitScript wraps mutationScript into a self-invoking script bound
// to selector. The observer waits for the list to appear, so it can run
// before the document is parsed.
func mutationInitScript(selector string) (string, error) {
	args, err := json.Marshal([]string{selector, mutationBinding})
	if err != nil {
		return "", fmt.Errorf("encode watch args: %w", err)
	}
	return "(" + mutationScript + ")(" + string(args) + ");", nil
}

func (c *controller) nth(selector string, index int) playwright.Locator {
	loc := c.page.Locator(selector)
	if index < 0 {
		return loc.Last()
	}
	return loc.Nth(index)
}

func getAttr(loc playwright.Locator, attr string) (string, error) {
	val, err := loc.GetAttribute(attr, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(float64(defaultActionTime.Milliseconds())),
	})
	return val, wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
