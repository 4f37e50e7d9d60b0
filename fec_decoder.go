package wfb

import (
	"github.com/appetito/wifibroadcast-bridge-1/internal/fec"
	"github.com/appetito/wifibroadcast-bridge-1/internal/protocol"
	"github.com/appetito/wifibroadcast-bridge-1/internal/utils"
	"github.com/appetito/wifibroadcast-bridge-1/internal/wire"
)

// FECDecoder reassembles the blocks of one link in arrival order. Data
// blocks arriving contiguously from position 0 are released immediately; a
// gap withholds later data blocks until enough of the group has arrived to
// reconstruct the missing ones, so the output stream stays in position
// order. Parity blocks are never released to the consumer.
//
// The decoder absorbs duplicates, reordering, drops and unrelated bytes
// without failing; everything irregular lands in the stats counters.
type FECDecoder struct {
	scheme protocol.FECSchemeID

	prev wire.FECHeader
	// shardSize is the group's shard size, 0 while no group is active.
	shardSize int
	blocks    []*FECBlock
	fecBlocks []*FECBlock
	// released counts the contiguous prefix of data blocks already handed
	// to the consumer for the active group.
	released int

	out   blockQueue
	stats FECDecoderStats
}

func NewFECDecoder() *FECDecoder {
	return NewFECDecoderWithScheme(protocol.ReedSolomonFECScheme)
}

// NewFECDecoderWithScheme selects the erasure-coding kernel explicitly. It
// must match the sending side.
func NewFECDecoderWithScheme(scheme protocol.FECSchemeID) *FECDecoder {
	return &FECDecoder{scheme: scheme}
}

// Stats returns a snapshot of the decoder's counters.
func (d *FECDecoder) Stats() FECDecoderStats {
	return d.stats
}

// GetBlock dequeues the next released data block, or nil. The caller takes
// ownership.
func (d *FECDecoder) GetBlock() *FECBlock {
	return d.out.pop()
}

// AddPacket feeds one received wire packet to the decoder.
func (d *FECDecoder) AddPacket(pkt []byte) {
	d.stats.TotalPackets++
	d.stats.Bytes += uint64(len(pkt))

	blk, err := ParseFECBlock(pkt)
	if err != nil {
		d.stats.DroppedPackets++
		return
	}
	h := blk.Header()
	delta := utils.SeqNumDelta(h.SeqNum, d.prev.SeqNum)

	if d.shardSize != 0 {
		// A group is active.
		if delta != 0 {
			// The active group ended without completing.
			if delta < 0 {
				d.stats.LostSync++
			} else {
				d.stats.DroppedBlocks += uint64(delta)
				total := int(h.NBlocks) + int(h.NFECBlocks)
				pktDelta := delta*total + int(h.BlockIndex) - int(d.prev.BlockIndex)
				if pktDelta > 0 {
					d.stats.DroppedPackets += uint64(pktDelta)
				}
			}
			d.resetGroup()
		} else if h.BlockIndex <= d.prev.BlockIndex {
			// duplicate or reordered within the group
			d.stats.DroppedPackets++
			d.prev = h
			return
		} else {
			d.stats.DroppedPackets += uint64(h.BlockIndex-d.prev.BlockIndex) - 1
		}
	} else if delta == 0 {
		// a stray block of the group that just completed
		d.prev = h
		return
	}
	d.prev = h

	// Anything skipped before the first block we saw of this group.
	if d.shardSize == 0 {
		d.stats.DroppedPackets += uint64(h.BlockIndex)
	}

	// No coding on this link: release directly.
	if h.NBlocks == 0 || h.NFECBlocks == 0 {
		d.out.push(blk)
		return
	}

	if s := blk.shardSize(); s > d.shardSize {
		d.shardSize = s
	}

	if h.IsData() {
		d.blocks = append(d.blocks, blk)
		// release immediately while the prefix has no gap
		if int(h.BlockIndex) == d.released {
			d.out.push(blk)
			d.released++
		}
		if len(d.blocks) == int(h.NBlocks) {
			d.resetGroup()
			d.stats.TotalBlocks++
		}
	} else {
		d.fecBlocks = append(d.fecBlocks, blk)
		if len(d.blocks)+len(d.fecBlocks) == int(h.NBlocks) {
			d.decode()
			d.resetGroup()
			d.stats.TotalBlocks++
		}
	}
}

func (d *FECDecoder) resetGroup() {
	d.shardSize = 0
	d.blocks = d.blocks[:0]
	d.fecBlocks = d.fecBlocks[:0]
	d.released = 0
}

// decode reconstructs the group's missing data blocks and releases every
// data block that was withheld by the first gap.
func (d *FECDecoder) decode() {
	var first *FECBlock
	if len(d.blocks) > 0 {
		first = d.blocks[0]
	} else if len(d.fecBlocks) > 0 {
		first = d.fecBlocks[0]
	} else {
		return
	}
	h := first.Header()
	n := int(h.NBlocks)
	m := int(h.NFECBlocks)
	if n > len(d.blocks)+len(d.fecBlocks) {
		d.stats.LostSync++
		return
	}
	if n == 0 || m == 0 {
		return
	}

	ordered := make([]*FECBlock, n)
	shards := make([][]byte, n)
	for _, blk := range d.blocks {
		idx := int(blk.Header().BlockIndex)
		if idx >= n {
			continue
		}
		blk.padTo(d.shardSize)
		ordered[idx] = blk
		shards[idx] = blk.shard()
	}

	var missing []int
	for i := 0; i < n; i++ {
		if ordered[i] == nil {
			blk := newFECBlock(h.SeqNum, uint8(i), h.NBlocks, h.NFECBlocks, uint16(d.shardSize-wire.FECLengthFieldLen))
			missing = append(missing, i)
			ordered[i] = blk
			shards[i] = blk.shard()
		}
	}
	if len(missing) == 0 {
		return
	}

	parity := make([][]byte, 0, len(d.fecBlocks))
	parityIndexes := make([]int, 0, len(d.fecBlocks))
	for _, blk := range d.fecBlocks {
		blk.padTo(d.shardSize)
		parity = append(parity, blk.shard())
		parityIndexes = append(parityIndexes, int(blk.Header().BlockIndex)-n)
	}

	coder, err := fec.NewBlockCoder(d.scheme, n, m)
	if err != nil {
		d.stats.LostSync++
		return
	}
	if err := coder.Reconstruct(shards, parity, parityIndexes, missing); err != nil {
		d.stats.LostSync++
		return
	}

	// Release everything the consumer has not seen yet, in position order.
	// A reconstructed length that cannot fit the shard means the shard is
	// corrupt; drop it.
	for i := d.released; i < n; i++ {
		length := int(ordered[i].PayloadLength())
		if length <= d.shardSize-wire.FECLengthFieldLen {
			d.out.push(ordered[i])
		} else {
			d.stats.DroppedBlocks++
		}
	}
}
