// Package perfship collects resource timing data for one page load, or one
// run of a Go program, and ships it to a collection endpoint.
//
// Entries come from a timing source: by default an instrumented HTTP
// transport (see Collector.Client), or anything implementing TimingSource such
// as a browser entry dump. They are filtered by URL prefix or pattern,
// buffered until BufferCount entries or FlushTimeout elapses, whichever comes
// first, and delivered once as a compact JSON package.
//
// # Quick Start
//
//	cfg := perfship.DefaultConfig()
//	cfg.Token = "your-token"
//	cfg.Prefixes = []string{"cdn.example.com"}
//
//	c, err := perfship.New(cfg)
//	if err != nil {
//	    return err
//	}
//	_ = c.Start(ctx)
//	resp, err := c.Client().Get("https://cdn.example.com/app.js")
//	...
//	_ = c.Stop(ctx)
//
// # Host Attributes
//
// Collect resolves configuration from host attributes (the data-* attributes
// of the collector script tag) and never reports an error: an invalid or
// incomplete configuration means nothing is collected.
//
//	c := perfship.Collect(ctx, perfship.Attributes{"token": "abc", "delay": "1000"})
//
// # Delivery
//
// Packages are queued on an in-process beacon and posted by a background
// worker; Stop drains the queue. Delivery is best effort with no retries.
package perfship
