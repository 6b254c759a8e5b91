//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

// ReplayPCAPFile feeds the UDP payloads captured on udpPort into sink, as if
// they had arrived at the listener.
func ReplayPCAPFile(ctx context.Context, pcapFile string, udpPort int, sink teleop.InputSink, opts ReplayOptions) (ReplayStats, error) {
	var stats ReplayStats

	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return stats, fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return stats, fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}
	logf("replaying %s (filter %q, realtime=%v)", pcapFile, filter, opts.Realtime)

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	var first time.Time
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				logf("replay complete: %d datagrams, %d rejected", stats.Packets, stats.Rejected)
				return stats, nil
			}
			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			ts := packet.Metadata().Timestamp
			if first.IsZero() {
				first = ts
			}
			stats.Span = ts.Sub(first)

			if opts.Realtime {
				if d := replayDelay(first, ts, started, time.Now(), opts.Speed); d > 0 {
					select {
					case <-ctx.Done():
						return stats, ctx.Err()
					case <-time.After(d):
					}
				}
			}

			stats.Packets++
			if _, err := teleop.Dispatch(udp.Payload, sink); err != nil {
				stats.Rejected++
			}
		}
	}
}
