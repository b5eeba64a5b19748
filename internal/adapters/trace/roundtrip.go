package trace

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/bft-labs/perfship/internal/domain"
)

// RoundTrip performs the request through the base transport and records its
// timing once the response body is fully read or closed. Failed requests are
// recorded with whatever phases completed.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	t := &timing{rec: r, fetchStart: r.clock.Now()}

	ctx := httptrace.WithClientTrace(req.Context(), t.clientTrace())
	entry := domain.TimingEntry{
		Name:          req.URL.String(),
		EntryType:     domain.KindResource,
		InitiatorType: initiatorOf(req.Context()),
	}
	if isNavigation(req.Context()) {
		entry.EntryType = domain.KindNavigation
	}
	t.entry = entry

	resp, err := r.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		t.finish(nil, 0)
		return nil, err
	}

	t.setResponse(resp)
	resp.Body = &body{ReadCloser: resp.Body, t: t}
	return resp, nil
}

type timing struct {
	rec        *Recorder
	entry      domain.TimingEntry
	fetchStart time.Time

	mu            sync.Mutex
	dnsStart      time.Time
	dnsEnd        time.Time
	connectStart  time.Time
	connectEnd    time.Time
	tlsStart      time.Time
	tlsEnd        time.Time
	requestStart  time.Time
	responseStart time.Time
	reused        bool
	secure        bool
	protocol      string
	headerBytes   int64
	done          bool
}

func (t *timing) now() time.Time { return t.rec.clock.Now() }

func (t *timing) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			t.mu.Lock()
			t.dnsStart = t.now()
			t.mu.Unlock()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			t.mu.Lock()
			t.dnsEnd = t.now()
			t.mu.Unlock()
		},
		ConnectStart: func(_, _ string) {
			t.mu.Lock()
			if t.connectStart.IsZero() {
				t.connectStart = t.now()
			}
			t.mu.Unlock()
		},
		ConnectDone: func(_, _ string, err error) {
			if err != nil {
				return
			}
			t.mu.Lock()
			t.connectEnd = t.now()
			t.mu.Unlock()
		},
		TLSHandshakeStart: func() {
			t.mu.Lock()
			t.tlsStart = t.now()
			t.mu.Unlock()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			t.mu.Lock()
			t.tlsEnd = t.now()
			t.protocol = state.NegotiatedProtocol
			t.mu.Unlock()
		},
		GotConn: func(info httptrace.GotConnInfo) {
			t.mu.Lock()
			t.requestStart = t.now()
			t.reused = info.Reused
			if _, ok := info.Conn.(*tls.Conn); ok {
				t.secure = true
			}
			t.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			t.mu.Lock()
			t.responseStart = t.now()
			t.mu.Unlock()
		},
	}
}

func (t *timing) setResponse(resp *http.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.responseStart.IsZero() {
		t.responseStart = t.now()
	}
	if resp.TLS != nil {
		t.secure = true
		if resp.TLS.NegotiatedProtocol != "" {
			t.protocol = resp.TLS.NegotiatedProtocol
		}
	}
	if t.protocol == "" {
		t.protocol = protocolOf(resp.ProtoMajor, resp.ProtoMinor)
	}
	t.headerBytes = headerSize(resp)
}

// finish records the entry once. end is nil when no response arrived.
func (t *timing) finish(end *time.Time, bodyBytes int64) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true

	e := t.entry
	e.NextHopProtocol = t.protocol
	since := t.rec.since

	if t.reused {
		// A reused connection skips DNS and connect; the browser reports
		// those phases as zero-length at fetchStart.
		start := since(t.fetchStart)
		e.DomainLookupStart, e.DomainLookupEnd = start, start
		e.ConnectStart, e.ConnectEnd = start, start
		if t.secure {
			e.SecureConnectionStart = start
		}
	} else {
		e.DomainLookupStart = since(t.dnsStart)
		e.DomainLookupEnd = since(t.dnsEnd)
		e.ConnectStart = since(t.connectStart)
		e.SecureConnectionStart = since(t.tlsStart)
		if !t.tlsEnd.IsZero() {
			e.ConnectEnd = since(t.tlsEnd)
		} else {
			e.ConnectEnd = since(t.connectEnd)
		}
	}
	e.RequestStart = since(t.requestStart)
	e.ResponseStart = since(t.responseStart)
	if end != nil {
		e.ResponseEnd = since(*end)
		e.TransferSize = t.headerBytes + bodyBytes
	}
	t.mu.Unlock()

	t.rec.record(e)
}

// body counts bytes read and records the entry at EOF or Close.
type body struct {
	io.ReadCloser
	t *timing

	mu sync.Mutex
	n  int64
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.mu.Lock()
	b.n += int64(n)
	total := b.n
	b.mu.Unlock()
	if err == io.EOF {
		end := b.t.now()
		b.t.finish(&end, total)
	}
	return n, err
}

func (b *body) Close() error {
	err := b.ReadCloser.Close()
	b.mu.Lock()
	total := b.n
	b.mu.Unlock()
	end := b.t.now()
	b.t.finish(&end, total)
	return err
}

// protocolOf maps an HTTP version to its ALPN protocol id.
func protocolOf(major, minor int) string {
	switch {
	case major == 3:
		return "h3"
	case major == 2:
		return "h2"
	case major == 1 && minor == 1:
		return "http/1.1"
	case major == 1 && minor == 0:
		return "http/1.0"
	case major == 0 && minor == 9:
		return "http/0.9"
	default:
		return ""
	}
}

// headerSize approximates the wire size of the status line and headers.
func headerSize(resp *http.Response) int64 {
	n := int64(len(resp.Proto) + 1 + len(resp.Status) + 2)
	for k, vs := range resp.Header {
		for _, v := range vs {
			n += int64(len(k) + 2 + len(v) + 2)
		}
	}
	return n + 2
}
