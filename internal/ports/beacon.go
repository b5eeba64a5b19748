package ports

// Beacon queues a small payload for asynchronous delivery that outlives the
// caller. It mirrors navigator.sendBeacon: the call never blocks on the network
// and reports only whether the payload was accepted for queueing.
type Beacon interface {
	SendBeacon(url, contentType string, body []byte) bool
}
