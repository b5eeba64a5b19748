package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/ports"
)

type capture struct {
	mu       sync.Mutex
	bodies   [][]byte
	types    []string
	encoding []string
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "gzip" {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			body = zr
		}
		b, _ := io.ReadAll(body)

		c.mu.Lock()
		c.bodies = append(c.bodies, b)
		c.types = append(c.types, r.Header.Get("Content-Type"))
		c.encoding = append(c.encoding, r.Header.Get("Content-Encoding"))
		c.mu.Unlock()

		w.WriteHeader(status)
	}
}

func samplePackage() domain.StatPackage {
	return domain.StatPackage{
		Token: "tok",
		Resources: []domain.Resource{{
			Metrics: domain.Metrics{QS: 10, PS: 20, PE: 30, TS: 512},
			Meta:    domain.Meta{N: "https://cdn.a.co/app.js", I: "script", P: "h2"},
		}},
	}
}

type fakeBeacon struct {
	accept bool
	bodies [][]byte
}

func (b *fakeBeacon) SendBeacon(_, contentType string, body []byte) bool {
	if !b.accept {
		return false
	}
	b.bodies = append(b.bodies, body)
	return contentType == ContentType
}

func TestTransport_PrefersBeacon(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	beacon := &fakeBeacon{accept: true}
	tr := NewTransport(beacon, NewPoster(srv.Client(), false), nil)
	tr.Send(context.Background(), srv.URL, samplePackage())

	if err := tr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(beacon.bodies) != 1 {
		t.Fatalf("beacon got %d payloads, want 1", len(beacon.bodies))
	}
	if hits != 0 {
		t.Errorf("server hit %d times, want 0", hits)
	}

	var got domain.StatPackage
	if err := json.Unmarshal(beacon.bodies[0], &got); err != nil {
		t.Fatalf("beacon body is not JSON: %v", err)
	}
	if got.Token != "tok" || got.Resources[0].Meta.N != "https://cdn.a.co/app.js" {
		t.Errorf("beacon body = %s", beacon.bodies[0])
	}
}

func TestTransport_DropsEmptyPackage(t *testing.T) {
	var mu sync.Mutex
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		beacon *fakeBeacon
	}{
		{"with beacon", &fakeBeacon{accept: true}},
		{"without beacon", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ports.Beacon
			if tt.beacon != nil {
				b = tt.beacon
			}
			tr := NewTransport(b, NewPoster(srv.Client(), false), nil)
			tr.Send(context.Background(), srv.URL, domain.StatPackage{Token: "tok"})
			if err := tr.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			if tt.beacon != nil && len(tt.beacon.bodies) != 0 {
				t.Errorf("beacon got %d payloads, want 0", len(tt.beacon.bodies))
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 0 {
		t.Errorf("server hit %d times, want 0", hits)
	}
}

func TestTransport_FallbackPost(t *testing.T) {
	tests := []struct {
		name     string
		beacon   *fakeBeacon
		compress bool
		status   int
	}{
		{"no beacon", nil, false, http.StatusNoContent},
		{"beacon refuses", &fakeBeacon{accept: false}, false, http.StatusOK},
		{"gzip body", nil, true, http.StatusOK},
		{"server error ignored", nil, false, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &capture{}
			srv := httptest.NewServer(c.handler(tt.status))
			defer srv.Close()

			var tr *Transport
			if tt.beacon != nil {
				tr = NewTransport(tt.beacon, NewPoster(srv.Client(), tt.compress), nil)
			} else {
				tr = NewTransport(nil, NewPoster(srv.Client(), tt.compress), nil)
			}

			tr.Send(context.Background(), srv.URL+"/collect", samplePackage())

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := tr.Wait(ctx); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}

			c.mu.Lock()
			defer c.mu.Unlock()
			if len(c.bodies) != 1 {
				t.Fatalf("server got %d requests, want 1", len(c.bodies))
			}
			if c.types[0] != "application/json" {
				t.Errorf("Content-Type = %q", c.types[0])
			}
			if tt.compress && c.encoding[0] != "gzip" {
				t.Errorf("Content-Encoding = %q, want gzip", c.encoding[0])
			}
			var got domain.StatPackage
			if err := json.Unmarshal(c.bodies[0], &got); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if got.Token != "tok" || len(got.Resources) != 1 {
				t.Errorf("body = %s", c.bodies[0])
			}
		})
	}
}

func TestTransport_SurvivesCancelledContext(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTransport(nil, NewPoster(srv.Client(), false), nil)
	tr.Send(ctx, srv.URL, samplePackage())
	cancel()

	if err := tr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) != 1 {
		t.Errorf("server got %d requests, want 1", len(c.bodies))
	}
}

func TestTransport_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := NewTransport(nil, NewPoster(nil, false), nil)
	tr.Send(context.Background(), url, samplePackage())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestPoster_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPoster(srv.Client(), false)
	if err := p.Post(context.Background(), srv.URL, ContentType, []byte("{}")); err == nil {
		t.Error("Post() error = nil, want status error")
	}
}
