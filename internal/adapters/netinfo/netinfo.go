// Package netinfo supplies connection-quality hints in Network Information API
// terms: downlink in Mbit/s, round-trip time in milliseconds and an effective
// connection type.
package netinfo

import (
	"math"
	"sort"
	"sync"

	"github.com/bft-labs/perfship/internal/domain"
)

// Effective connection types.
const (
	TypeSlow2G = "slow-2g"
	Type2G     = "2g"
	Type3G     = "3g"
	Type4G     = "4g"
)

// threshold is the minimum RTT and maximum downlink of an effective type.
type threshold struct {
	class    string
	rtt      float64 // ms
	downlink float64 // Mbit/s
}

// Checked from slowest to fastest; the first class whose RTT floor or
// downlink ceiling is met wins.
var thresholds = []threshold{
	{TypeSlow2G, 2000, 0.05},
	{Type2G, 1400, 0.07},
	{Type3G, 270, 0.7},
}

// EffectiveType classifies a connection from its RTT (ms) and downlink
// (Mbit/s). Zero values are treated as unknown and do not vote.
func EffectiveType(rtt, downlink float64) string {
	for _, th := range thresholds {
		if rtt > 0 && rtt >= th.rtt {
			return th.class
		}
		if downlink > 0 && downlink <= th.downlink {
			return th.class
		}
	}
	return Type4G
}

// Static reports fixed connection info.
type Static struct {
	Info domain.ConnectionInfo
}

// Connection implements ports.NetworkInfo. A zero Info reports nothing.
func (s Static) Connection() (domain.ConnectionInfo, bool) {
	if s.Info == (domain.ConnectionInfo{}) {
		return domain.ConnectionInfo{}, false
	}
	info := s.Info
	if info.EffectiveType == "" {
		info.EffectiveType = EffectiveType(info.RTT, info.Downlink)
	}
	return info, true
}

// DefaultWindow is the number of recent samples an Estimator keeps.
const DefaultWindow = 50

// Estimator derives connection info from observed timing entries, the way a
// browser estimates it from recent transfers: RTT from connection setup or
// time to first byte, downlink from transfer size over download time.
// Medians of the most recent samples are reported.
type Estimator struct {
	window int

	mu        sync.Mutex
	rtts      []float64
	downlinks []float64
}

// NewEstimator creates an Estimator keeping window samples of each kind.
func NewEstimator(window int) *Estimator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Estimator{window: window}
}

// minTransferBytes excludes tiny responses whose download time is dominated
// by latency.
const minTransferBytes = 10 << 10

// Observe adds the samples carried by e, if any.
func (est *Estimator) Observe(e domain.TimingEntry) {
	rtt := rttOf(e)
	downlink := downlinkOf(e)

	est.mu.Lock()
	defer est.mu.Unlock()
	if rtt > 0 {
		est.rtts = push(est.rtts, rtt, est.window)
	}
	if downlink > 0 {
		est.downlinks = push(est.downlinks, downlink, est.window)
	}
}

// Connection implements ports.NetworkInfo. It reports nothing until at least
// one RTT sample exists.
func (est *Estimator) Connection() (domain.ConnectionInfo, bool) {
	est.mu.Lock()
	defer est.mu.Unlock()
	if len(est.rtts) == 0 {
		return domain.ConnectionInfo{}, false
	}

	info := domain.ConnectionInfo{
		RTT:      median(est.rtts),
		Downlink: median(est.downlinks),
	}
	// The browser API rounds downlink to 25 kbit/s and RTT to 25 ms.
	info.Downlink = math.Round(info.Downlink*40) / 40
	info.RTT = math.Round(info.RTT/25) * 25
	info.EffectiveType = EffectiveType(info.RTT, info.Downlink)
	return info, true
}

func rttOf(e domain.TimingEntry) float64 {
	if e.ConnectStart != nil && e.ConnectEnd != nil && *e.ConnectEnd > *e.ConnectStart {
		end := *e.ConnectEnd
		if e.SecureConnectionStart != nil && *e.SecureConnectionStart > *e.ConnectStart {
			end = *e.SecureConnectionStart
		}
		return end - *e.ConnectStart
	}
	if e.RequestStart != nil && e.ResponseStart != nil && *e.ResponseStart > *e.RequestStart {
		return *e.ResponseStart - *e.RequestStart
	}
	return 0
}

// downlinkOf returns Mbit/s.
func downlinkOf(e domain.TimingEntry) float64 {
	if e.TransferSize < minTransferBytes || e.ResponseStart == nil || e.ResponseEnd == nil {
		return 0
	}
	ms := *e.ResponseEnd - *e.ResponseStart
	if ms <= 0 {
		return 0
	}
	bits := float64(e.TransferSize) * 8
	return bits / (ms * 1000)
}

func push(s []float64, v float64, window int) []float64 {
	s = append(s, v)
	if len(s) > window {
		s = s[len(s)-window:]
	}
	return s
}

func median(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	sorted := append([]float64(nil), s...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
