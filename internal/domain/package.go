package domain

// StatPackage is the payload POSTed to the collection endpoint.
//
//	{"token": "...", "resources": [{"metrics": {...}, "meta": {...}}], "conn": {...}}
//
// A package with no resources is unfulfilled and is never sent.
type StatPackage struct {
	Token     string      `json:"token"`
	Resources []Resource  `json:"resources"`
	Conn      *Connection `json:"conn,omitempty"`
}

// Resource is one timing entry projected onto the wire.
type Resource struct {
	Metrics Metrics `json:"metrics"`
	Meta    Meta    `json:"meta"`
}

// Metrics holds integer-millisecond timestamps and the transfer size in bytes.
type Metrics struct {
	DS int64 `json:"ds"` // domainLookupStart
	DE int64 `json:"de"` // domainLookupEnd
	CS int64 `json:"cs"` // connectStart
	SS int64 `json:"ss"` // secureConnectionStart
	CE int64 `json:"ce"` // connectEnd
	QS int64 `json:"qs"` // requestStart
	PS int64 `json:"ps"` // responseStart
	PE int64 `json:"pe"` // responseEnd
	TS int64 `json:"ts"` // transferSize
}

// Meta identifies the resource.
type Meta struct {
	N string `json:"n"` // name (URL)
	I string `json:"i"` // initiator type
	P string `json:"p"` // next hop protocol
}

// Connection is the network-quality block.
type Connection struct {
	D   int64  `json:"d"`   // downlink, kbit/s
	ET  string `json:"et"`  // effective type
	RTT int64  `json:"rtt"` // round trip, ms
}

// ConnectionInfo is what the host reports about the current connection,
// in Network Information API units.
type ConnectionInfo struct {
	// Downlink is the estimated bandwidth in Mbit/s.
	Downlink float64

	// EffectiveType is "slow-2g", "2g", "3g" or "4g".
	EffectiveType string

	// RTT is the estimated round-trip time in milliseconds.
	RTT float64
}
