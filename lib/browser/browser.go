// Package browser drives a Chrome instance whose session storage is seeded
// and which is then pointed at the application under test.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var ErrNoBaseURL = errors.New("browser needs the application base url")

// Browser implements storage.SessionStorage and lib.Navigator on one tab.
// Session storage is per origin, so the tab opens the base URL before the
// first write.
type Browser struct {
	base *url.URL

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	opened bool
}

type Options struct {
	Headless bool
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

func New(parent context.Context, baseURL string, opts Options) (*Browser, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, xerrors.Errorf("parsing base url: %w", err)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	return &Browser{
		base: base,
		ctx:  ctx,
		cancel: func() {
			cancel()
			allocCancel()
		},
	}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancel()
}

// Done is closed when the browser goes away.
func (b *Browser) Done() <-chan struct{} {
	return b.ctx.Done()
}

// Resolve turns an application path into an absolute URL on the base origin.
func (b *Browser) Resolve(path string) string {
	return b.base.ResolveReference(&url.URL{Path: path}).String()
}

func (b *Browser) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.ensureOrigin(ctx); err != nil {
		return err
	}

	var ok bool
	script := fmt.Sprintf("(sessionStorage.setItem(%s, %s), true)", jsString(key), jsString(value))
	if err := b.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return xerrors.Errorf("sessionStorage.setItem: %w", err)
	}
	return nil
}

// GetItem reads a session storage entry back; missing keys read as "".
func (b *Browser) GetItem(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := b.ensureOrigin(ctx); err != nil {
		return "", err
	}

	var value string
	script := fmt.Sprintf("sessionStorage.getItem(%s) || \"\"", jsString(key))
	if err := b.run(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", xerrors.Errorf("sessionStorage.getItem: %w", err)
	}
	return value, nil
}

func (b *Browser) Navigate(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := b.Resolve(path)
	log.Debugf("Navigating to %s", target)
	if err := b.run(ctx, chromedp.Navigate(target)); err != nil {
		return err
	}

	b.mu.Lock()
	b.opened = true
	b.mu.Unlock()
	return nil
}

func (b *Browser) ensureOrigin(ctx context.Context) error {
	b.mu.Lock()
	opened := b.opened
	b.mu.Unlock()
	if opened {
		return nil
	}
	return b.Navigate(ctx, b.base.Path)
}

// runContext derives a context from the tab that is also canceled when ctx
// is done. Canceling it ends the actions, not the tab.
func (b *Browser) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(b.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := b.runContext(ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
