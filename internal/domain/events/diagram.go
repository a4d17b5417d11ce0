package events

import (
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

//go:embed assets/*.svg
var assets embed.FS

// Prober checks whether an image URL can be loaded.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

type ProberFunc func(ctx context.Context, url string) error

func (f ProberFunc) Probe(ctx context.Context, url string) error { return f(ctx, url) }

// HTTPProber issues a GET and accepts any 2xx image response. Data URIs
// are always accepted.
type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	if strings.HasPrefix(url, "data:image/") {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("image %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("image %s: unexpected content type %q", url, ct)
	}
	return nil
}

// Diagram is the outcome of resolving a body map image. When every
// candidate failed, Error and ManualTarget are set and the client falls
// back to a plain target area for placing points.
type Diagram struct {
	Side         Side   `json:"side"`
	URL          string `json:"url,omitempty"`
	Index        int    `json:"index"`
	Placeholder  bool   `json:"placeholder"`
	Error        bool   `json:"error"`
	ManualTarget bool   `json:"manualTarget"`
	Tried        int    `json:"tried"`
}

// ResolveCandidates walks candidates in order and returns the first one
// that loads.
func ResolveCandidates(ctx context.Context, prober Prober, candidates []string) Diagram {
	for i, url := range candidates {
		if url == "" {
			continue
		}
		if err := prober.Probe(ctx, url); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Int("candidate", i).Msg("body map image unavailable")
			continue
		}
		return Diagram{URL: url, Index: i, Tried: i + 1}
	}
	return Diagram{Index: -1, Error: true, ManualTarget: true, Tried: len(candidates)}
}

// DiagramResolver holds the candidate list for each side: configured
// uploads, then an optional stock image, then the embedded outline.
type DiagramResolver struct {
	prober   Prober
	front    []string
	back     []string
	stock    map[Side]string
	fallback bool
}

type DiagramOption func(*DiagramResolver)

// WithStockImage adds a remote stock image after the configured uploads.
func WithStockImage(side Side, url string) DiagramOption {
	return func(r *DiagramResolver) { r.stock[side] = url }
}

// WithoutPlaceholder drops the embedded outline from the candidates.
func WithoutPlaceholder() DiagramOption {
	return func(r *DiagramResolver) { r.fallback = false }
}

func NewDiagramResolver(prober Prober, front, back []string, opts ...DiagramOption) *DiagramResolver {
	r := &DiagramResolver{
		prober:   prober,
		front:    front,
		back:     back,
		stock:    map[Side]string{},
		fallback: true,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Candidates lists the URLs tried for side, in order.
func (r *DiagramResolver) Candidates(side Side) []string {
	var out []string
	if side == SideBack {
		out = append(out, r.back...)
	} else {
		out = append(out, r.front...)
	}
	if u := r.stock[side]; u != "" {
		out = append(out, u)
	}
	if r.fallback {
		out = append(out, PlaceholderURI(side))
	}
	return out
}

func (r *DiagramResolver) Resolve(ctx context.Context, side Side) Diagram {
	candidates := r.Candidates(side)
	d := ResolveCandidates(ctx, r.prober, candidates)
	d.Side = side
	if !d.Error && r.fallback && d.Index == len(candidates)-1 {
		d.Placeholder = true
	}
	return d
}

// PlaceholderURI returns the embedded outline for side as a data URI.
func PlaceholderURI(side Side) string {
	name := "assets/body-front.svg"
	if side == SideBack {
		name = "assets/body-back.svg"
	}
	b, err := assets.ReadFile(name)
	if err != nil {
		return ""
	}
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(b)
}
