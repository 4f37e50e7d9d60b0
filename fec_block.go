package wfb

import (
	"github.com/appetito/wifibroadcast-bridge-1/internal/wire"
)

// FECBlock owns one wire packet: header, length field, payload and zero
// padding in a single contiguous buffer. Everything past the header (the
// length field included) is the shard handed to the erasure coder, so
// reconstructing a lost shard also recovers its true payload length.
type FECBlock struct {
	hdr  wire.FECHeader
	data []byte
}

func newFECBlock(seqNum, blockIndex, nBlocks, nFECBlocks uint8, length uint16) *FECBlock {
	b := &FECBlock{
		hdr: wire.FECHeader{
			SeqNum:     seqNum,
			BlockIndex: blockIndex,
			NBlocks:    nBlocks,
			NFECBlocks: nFECBlocks,
		},
		data: make([]byte, wire.FECPacketOverhead+int(length)),
	}
	b.hdr.Append(b.data[:0])
	wire.PutPayloadLength(b.data[wire.FECHeaderLen:], length)
	return b
}

// ParseFECBlock copies a received packet into a newly owned block. Header
// fields are trusted as-is; a corrupted header shows up as decoder
// statistics, not as an error.
func ParseFECBlock(pkt []byte) (*FECBlock, error) {
	hdr, err := wire.ParseFECHeader(pkt)
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(pkt))
	copy(data, pkt)
	return &FECBlock{hdr: hdr, data: data}, nil
}

func (b *FECBlock) Header() wire.FECHeader { return b.hdr }

// PayloadLength reads the length field. On parity blocks the field holds
// coded bytes and carries no meaning until a shard has been reconstructed.
func (b *FECBlock) PayloadLength() uint16 {
	return wire.PayloadLength(b.data[wire.FECHeaderLen:])
}

// Payload returns the live payload bytes of a data block.
func (b *FECBlock) Payload() []byte {
	end := wire.FECPacketOverhead + int(b.PayloadLength())
	if end > len(b.data) {
		end = len(b.data)
	}
	return b.data[wire.FECPacketOverhead:end]
}

// WirePacket returns the bytes to transmit for this block. Data blocks stop
// after the payload: the zero padding is implicit and restored by the
// receiver before decoding. Parity blocks carry their full shard.
func (b *FECBlock) WirePacket() []byte {
	if b.hdr.IsData() {
		end := wire.FECPacketOverhead + int(b.PayloadLength())
		if end > len(b.data) {
			end = len(b.data)
		}
		return b.data[:end]
	}
	return b.data
}

// shard is the erasure-coded region: length field, payload and padding.
func (b *FECBlock) shard() []byte {
	return b.data[wire.FECHeaderLen:]
}

func (b *FECBlock) shardSize() int {
	return len(b.data) - wire.FECHeaderLen
}

// padTo zero-extends the shard region to size bytes. The coder requires all
// shards of a group to be of equal length, with unsent bytes read as zero.
func (b *FECBlock) padTo(size int) {
	need := wire.FECHeaderLen + size
	if need <= len(b.data) {
		return
	}
	grown := make([]byte, need)
	copy(grown, b.data)
	b.data = grown
}

func (b *FECBlock) setBlockIndex(i uint8) {
	b.hdr.BlockIndex = i
	b.syncHeader()
}

func (b *FECBlock) setNBlocks(n uint8) {
	b.hdr.NBlocks = n
	b.syncHeader()
}

func (b *FECBlock) syncHeader() {
	b.hdr.Append(b.data[:0])
}
