package wfb

import (
	"math"

	"github.com/appetito/wifibroadcast-bridge-1/internal/protocol"
)

// FECBufferEncoder slices a single application buffer into one FEC group
// and encodes it. Shards are balanced to near-equal size instead of filling
// all but the last one, so loss of any single block costs about the same.
type FECBufferEncoder struct {
	scheme       protocol.FECSchemeID
	maxBlockSize uint16
	fecRatio     float32
	seqNum       uint8
}

func NewFECBufferEncoder(maxBlockSize uint16, fecRatio float32) *FECBufferEncoder {
	return NewFECBufferEncoderWithScheme(protocol.ReedSolomonFECScheme, maxBlockSize, fecRatio)
}

func NewFECBufferEncoderWithScheme(scheme protocol.FECSchemeID, maxBlockSize uint16, fecRatio float32) *FECBufferEncoder {
	return &FECBufferEncoder{
		scheme:       scheme,
		maxBlockSize: maxBlockSize,
		fecRatio:     fecRatio,
		seqNum:       1,
	}
}

// EncodeBuffer encodes buf as one group and returns the blocks to transmit.
// A buffer that would need more than 255 shards returns no blocks.
func (e *FECBufferEncoder) EncodeBuffer(buf []byte) []*FECBlock {
	l := len(buf)
	if e.maxBlockSize == 0 {
		return nil
	}

	nBlocks := (l + int(e.maxBlockSize) - 1) / int(e.maxBlockSize)
	if nBlocks > protocol.MaxShardsPerGroup {
		return nil
	}
	blockSize := int(e.maxBlockSize)
	if nBlocks <= 1 {
		nBlocks = 1
		blockSize = l
	} else {
		blockSize = (l + nBlocks - 1) / nBlocks
	}

	nFECBlocks := int(math.Ceil(float64(nBlocks) * float64(e.fecRatio)))
	if nFECBlocks > protocol.MaxShardsPerGroup-nBlocks {
		nFECBlocks = protocol.MaxShardsPerGroup - nBlocks
	}
	if nFECBlocks < 0 {
		nFECBlocks = 0
	}

	enc := NewFECEncoderWithScheme(e.scheme, uint8(nBlocks), uint8(nFECBlocks), uint16(blockSize), e.seqNum)
	e.seqNum++
	if e.seqNum == protocol.ReservedSeqNum {
		e.seqNum++
	}

	for b := 0; b < nBlocks; b++ {
		start := b * blockSize
		end := start + blockSize
		if end > l {
			end = l
		}
		blk := enc.NextBlock(uint16(end - start))
		copy(blk.Payload(), buf[start:end])
		enc.AddBlock(blk)
	}
	blocks := make([]*FECBlock, 0, nBlocks+nFECBlocks)
	for blk := enc.GetBlock(); blk != nil; blk = enc.GetBlock() {
		blocks = append(blocks, blk)
	}
	return blocks
}
