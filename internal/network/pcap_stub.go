//go:build !pcap
// +build !pcap

package network

import (
	"context"

	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

// ReplayPCAPFile is unavailable without the pcap build tag.
func ReplayPCAPFile(ctx context.Context, pcapFile string, udpPort int, sink teleop.InputSink, opts ReplayOptions) (ReplayStats, error) {
	return ReplayStats{}, ErrPCAPDisabled
}
