package network

import "time"

// ReplayOptions controls PCAP replay pacing.
type ReplayOptions struct {
	// Realtime sleeps between datagrams to reproduce capture timing.
	Realtime bool
	// Speed scales realtime pacing; values <= 0 mean 1.
	Speed float64
}

// ReplayStats summarises a finished replay.
type ReplayStats struct {
	Packets  int           `json:"packets"`
	Rejected int           `json:"rejected"`
	Span     time.Duration `json:"span"`
}

// replayDelay returns how long to wait before delivering a datagram captured
// at ts, given the first capture timestamp and when replay started.
func replayDelay(first, ts time.Time, started, now time.Time, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	target := started.Add(time.Duration(float64(ts.Sub(first)) / speed))
	if d := target.Sub(now); d > 0 {
		return d
	}
	return 0
}
