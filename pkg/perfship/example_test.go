package perfship_test

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/perfship/pkg/perfship"
)

// ExampleNew demonstrates recording the requests of an HTTP client.
func ExampleNew() {
	cfg := perfship.DefaultConfig()
	cfg.Token = "your-site-token"
	cfg.Prefixes = []string{"cdn.example.com"}
	cfg.FlushTimeout = 2 * time.Second

	c, err := perfship.New(cfg, perfship.WithoutBeacon())
	if err != nil {
		fmt.Printf("failed to create collector: %v\n", err)
		return
	}

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}

	// Requests made through this client are recorded.
	client := c.Client()
	_ = client

	fmt.Println("Status:", c.Status())

	// Stop delivers nothing here: no request matched the prefixes.
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = c.Stop(stopCtx)

	// Output: Status: Collecting
}

// ExampleCollect demonstrates configuration from host attributes. Collect
// never returns an error; a nil Collector means collection is disabled.
func ExampleCollect() {
	c := perfship.Collect(context.Background(), perfship.Attributes{
		"prefix": "cdn.example.com",
	})
	fmt.Println("Enabled:", c != nil)

	// Output: Enabled: false
}

// Example_withEventHandler demonstrates how to receive collector events.
func Example_withEventHandler() {
	cfg := perfship.DefaultConfig()
	cfg.Token = "your-site-token"

	c, err := perfship.New(cfg, perfship.WithEventHandler(&myEventHandler{}))
	if err != nil {
		fmt.Printf("failed to create collector: %v\n", err)
		return
	}

	_ = c // Start, make requests, Stop...
}

// myEventHandler implements perfship.EventHandler.
type myEventHandler struct {
	perfship.BaseEventHandler // Embed for no-op defaults
}

func (h *myEventHandler) OnFlush(event perfship.FlushEvent) {
	fmt.Printf("Flushed %d resources (%s, sent=%v) after %v\n",
		event.Resources, event.Reason, event.Sent, event.Duration)
}
