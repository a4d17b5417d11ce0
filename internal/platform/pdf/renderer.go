package pdf

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Renderer turns a Document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

type RendererFunc func(ctx context.Context, doc Document) ([]byte, error)

func (f RendererFunc) Render(ctx context.Context, doc Document) ([]byte, error) {
	return f(ctx, doc)
}

// ChromeRenderer prints documents with a headless Chrome per request.
type ChromeRenderer struct {
	brand   Branding
	timeout time.Duration
	logger  zerolog.Logger
	opts    []chromedp.ExecAllocatorOption
}

func NewChromeRenderer(brand Branding, timeout time.Duration, logger zerolog.Logger) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	return &ChromeRenderer{
		brand:   brand,
		timeout: timeout,
		logger:  logger.With().Str("component", "pdf").Logger(),
		opts:    opts,
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	var body bytes.Buffer
	if err := WriteHTML(&body, r.brand, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	header, err := HeaderHTML(r.brand)
	if err != nil {
		return nil, fmt.Errorf("render header: %w", err)
	}
	footer, err := FooterHTML()
	if err != nil {
		return nil, fmt.Errorf("render footer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.opts...)
	defer cancelAlloc()
	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)
	defer cancelChrome()

	start := time.Now()
	var out []byte
	err = chromedp.Run(chromeCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, body.String()).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			out, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.8).
				WithMarginBottom(0.8).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(header).
				WithFooterTemplate(footer).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}

	r.logger.Debug().
		Str("kind", doc.Kind).
		Int("bytes", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("pdf rendered")
	return out, nil
}
