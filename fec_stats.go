package wfb

// FECDecoderStats counts what a decoder has seen on its link. All fields
// are monotonic; snapshots can be combined fieldwise to build deltas for
// reporting or aggregates across links.
//
// Blocks here are FEC groups; packets are individual wire packets.
// DroppedPackets is an estimate, not an exact count: a backward move of the
// block position inside a group counts as a single drop however far it
// moved, while a break between groups is charged by position distance,
// which can exceed the number of packets actually lost.
type FECDecoderStats struct {
	TotalBlocks    uint64
	TotalPackets   uint64
	DroppedBlocks  uint64
	DroppedPackets uint64
	LostSync       uint64
	Bytes          uint64
}

// Add combines two snapshots fieldwise.
func (s FECDecoderStats) Add(o FECDecoderStats) FECDecoderStats {
	return FECDecoderStats{
		TotalBlocks:    s.TotalBlocks + o.TotalBlocks,
		TotalPackets:   s.TotalPackets + o.TotalPackets,
		DroppedBlocks:  s.DroppedBlocks + o.DroppedBlocks,
		DroppedPackets: s.DroppedPackets + o.DroppedPackets,
		LostSync:       s.LostSync + o.LostSync,
		Bytes:          s.Bytes + o.Bytes,
	}
}

// Sub returns the fieldwise difference, typically between a snapshot and an
// earlier one of the same decoder.
func (s FECDecoderStats) Sub(o FECDecoderStats) FECDecoderStats {
	return FECDecoderStats{
		TotalBlocks:    s.TotalBlocks - o.TotalBlocks,
		TotalPackets:   s.TotalPackets - o.TotalPackets,
		DroppedBlocks:  s.DroppedBlocks - o.DroppedBlocks,
		DroppedPackets: s.DroppedPackets - o.DroppedPackets,
		LostSync:       s.LostSync - o.LostSync,
		Bytes:          s.Bytes - o.Bytes,
	}
}
