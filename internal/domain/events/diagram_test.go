package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func failing(bad ...string) Prober {
	return ProberFunc(func(_ context.Context, url string) error {
		for _, b := range bad {
			if url == b {
				return errors.New("load failed")
			}
		}
		return nil
	})
}

func TestResolveCandidates_FallsThrough(t *testing.T) {
	d := ResolveCandidates(context.Background(), failing("A", "B"), []string{"A", "B", "C"})
	if d.URL != "C" || d.Error {
		t.Errorf("expected C without error, got %+v", d)
	}
	if d.Index != 2 || d.Tried != 3 {
		t.Errorf("expected index 2 after 3 tries, got %+v", d)
	}
}

func TestResolveCandidates_AllFail(t *testing.T) {
	d := ResolveCandidates(context.Background(), failing("A", "B"), []string{"A", "B"})
	if !d.Error || !d.ManualTarget || d.URL != "" {
		t.Errorf("expected manual target, got %+v", d)
	}
}

func TestResolveCandidates_SkipsEmpty(t *testing.T) {
	d := ResolveCandidates(context.Background(), failing(), []string{"", "B"})
	if d.URL != "B" {
		t.Errorf("expected B, got %+v", d)
	}
}

func TestDiagramResolver_Candidates(t *testing.T) {
	r := NewDiagramResolver(failing(), []string{"f1", "f2"}, []string{"b1"},
		WithStockImage(SideFront, "stock-front"))

	front := r.Candidates(SideFront)
	if len(front) != 4 || front[0] != "f1" || front[2] != "stock-front" {
		t.Fatalf("unexpected front candidates %v", front)
	}
	if !strings.HasPrefix(front[3], "data:image/svg+xml;base64,") {
		t.Errorf("expected embedded placeholder last, got %q", front[3])
	}

	back := r.Candidates(SideBack)
	if len(back) != 2 || back[0] != "b1" {
		t.Errorf("unexpected back candidates %v", back)
	}
}

func TestDiagramResolver_UsesPlaceholder(t *testing.T) {
	r := NewDiagramResolver(failing("f1"), []string{"f1"}, nil)
	d := r.Resolve(context.Background(), SideFront)
	if d.Error || !d.Placeholder || d.Side != SideFront {
		t.Errorf("expected placeholder, got %+v", d)
	}
}

func TestDiagramResolver_WithoutPlaceholder(t *testing.T) {
	r := NewDiagramResolver(failing("f1"), []string{"f1"}, nil, WithoutPlaceholder())
	d := r.Resolve(context.Background(), SideFront)
	if !d.Error || !d.ManualTarget {
		t.Errorf("expected manual target, got %+v", d)
	}
}

func TestPlaceholderURI_DiffersBySide(t *testing.T) {
	if PlaceholderURI(SideFront) == PlaceholderURI(SideBack) {
		t.Error("front and back outlines should differ")
	}
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewHTTPProber(2 * time.Second)
	ctx := context.Background()
	if err := p.Probe(ctx, srv.URL+"/ok.png"); err != nil {
		t.Errorf("expected image to load: %v", err)
	}
	if err := p.Probe(ctx, srv.URL+"/page"); err == nil {
		t.Error("expected error for non-image content")
	}
	if err := p.Probe(ctx, srv.URL+"/missing.png"); err == nil {
		t.Error("expected error for 404")
	}
	if err := p.Probe(ctx, PlaceholderURI(SideBack)); err != nil {
		t.Errorf("data URIs should always load: %v", err)
	}
}
