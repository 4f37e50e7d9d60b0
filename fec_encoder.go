package wfb

import (
	"github.com/appetito/wifibroadcast-bridge-1/internal/fec"
	"github.com/appetito/wifibroadcast-bridge-1/internal/protocol"
	"github.com/appetito/wifibroadcast-bridge-1/internal/wire"
)

// FECEncoder turns a stream of data blocks into groups of systematic data
// plus parity blocks. Blocks are handed in one at a time; once a group of
// nBlocks is complete (or flushed early), the whole group is moved to the
// output queue in order: data blocks by ascending position, then parity
// blocks by ascending position.
type FECEncoder struct {
	scheme       protocol.FECSchemeID
	nBlocks      uint8
	nFECBlocks   uint8
	maxBlockSize uint16
	seqNum       uint8
	in           []*FECBlock
	out          blockQueue
}

func NewFECEncoder(nBlocks, nFECBlocks uint8, maxBlockSize uint16, startSeq uint8) *FECEncoder {
	return NewFECEncoderWithScheme(protocol.ReedSolomonFECScheme, nBlocks, nFECBlocks, maxBlockSize, startSeq)
}

// NewFECEncoderWithScheme selects the erasure-coding kernel explicitly. The
// receiving side must be configured with the same scheme.
func NewFECEncoderWithScheme(scheme protocol.FECSchemeID, nBlocks, nFECBlocks uint8, maxBlockSize uint16, startSeq uint8) *FECEncoder {
	return &FECEncoder{
		scheme:       scheme,
		nBlocks:      nBlocks,
		nFECBlocks:   nFECBlocks,
		maxBlockSize: maxBlockSize,
		seqNum:       startSeq,
		in:           make([]*FECBlock, 0, nBlocks),
	}
}

// NextBlock allocates the next data block, stamped with the current
// sequence number and the next position in the group. The caller fills
// Payload and hands the block back via AddBlock.
func (e *FECEncoder) NextBlock(length uint16) *FECBlock {
	return newFECBlock(e.seqNum, uint8(len(e.in)), e.nBlocks, e.nFECBlocks, length)
}

// AddBlock appends a data block to the in-flight group. Completing the
// group computes the parity blocks and moves everything to the output
// queue.
func (e *FECEncoder) AddBlock(b *FECBlock) {
	b.setBlockIndex(uint8(len(e.in)))

	// Without coding the block goes straight through and every block is its
	// own sequence.
	if e.nBlocks == 0 || e.nFECBlocks == 0 {
		e.out.push(b)
		e.advanceSeq()
		return
	}

	e.in = append(e.in, b)
	if b.Header().BlockIndex == e.nBlocks-1 {
		e.encodeGroup()
	}
}

// Flush completes the current group early. The group is emitted with
// n_blocks set to its actual size.
func (e *FECEncoder) Flush() {
	e.encodeGroup()
}

// GetBlock dequeues the next block to transmit, or nil when the queue is
// drained. The caller takes ownership.
func (e *FECEncoder) GetBlock() *FECBlock {
	return e.out.pop()
}

func (e *FECEncoder) advanceSeq() {
	e.seqNum++
	if e.seqNum == protocol.ReservedSeqNum {
		e.seqNum++
	}
}

func (e *FECEncoder) encodeGroup() {
	n := len(e.in)
	if n == 0 {
		return
	}

	// The group's shard size is set by its largest block.
	shardSize := 0
	for _, b := range e.in {
		if s := int(b.PayloadLength()) + wire.FECLengthFieldLen; s > shardSize {
			shardSize = s
		}
	}

	data := make([][]byte, n)
	for i, b := range e.in {
		b.setNBlocks(uint8(n))
		b.padTo(shardSize)
		data[i] = b.shard()
		e.out.push(b)
	}

	// A group shape the kernel cannot represent degrades to sending the
	// data blocks without parity.
	coder, err := fec.NewBlockCoder(e.scheme, n, int(e.nFECBlocks))
	if err == nil {
		parityBlocks := make([]*FECBlock, e.nFECBlocks)
		parity := make([][]byte, e.nFECBlocks)
		for i := range parityBlocks {
			pb := newFECBlock(e.seqNum, uint8(n+i), uint8(n), e.nFECBlocks, uint16(shardSize-wire.FECLengthFieldLen))
			parityBlocks[i] = pb
			parity[i] = pb.shard()
		}
		if coder.Encode(data, parity) == nil {
			for _, pb := range parityBlocks {
				e.out.push(pb)
			}
		}
	}

	e.advanceSeq()
	e.in = e.in[:0]
}
