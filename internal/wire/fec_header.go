package wire

import (
	"encoding/binary"
	"errors"
)

// The FEC packet layout is fixed and little-endian:
//
//	offset 0  seq_num       u8
//	offset 1  block         u8
//	offset 2  n_blocks      u8
//	offset 3  n_fec_blocks  u8
//	offset 4  length        u16le
//	offset 6  payload
//
// The length field is deliberately outside the header: it is the first two
// bytes of the erasure-coded shard, so reconstructing a lost shard also
// recovers the true payload length.
const (
	FECHeaderLen       = 4
	FECLengthFieldLen  = 2
	FECPacketOverhead  = FECHeaderLen + FECLengthFieldLen
	seqNumOffset       = 0
	blockIndexOffset   = 1
	numBlocksOffset    = 2
	numFECBlocksOffset = 3
)

var ErrFECPacketTooShort = errors.New("FEC packet shorter than header and length field")

type FECHeader struct {
	SeqNum     uint8
	BlockIndex uint8
	NBlocks    uint8
	NFECBlocks uint8
}

// ParseFECHeader reads the header of a received FEC packet. The packet must
// be long enough to also carry the length field; anything shorter cannot
// contribute to a shard.
func ParseFECHeader(b []byte) (FECHeader, error) {
	if len(b) < FECPacketOverhead {
		return FECHeader{}, ErrFECPacketTooShort
	}
	return FECHeader{
		SeqNum:     b[seqNumOffset],
		BlockIndex: b[blockIndexOffset],
		NBlocks:    b[numBlocksOffset],
		NFECBlocks: b[numFECBlocksOffset],
	}, nil
}

func (h FECHeader) Append(b []byte) []byte {
	return append(b, h.SeqNum, h.BlockIndex, h.NBlocks, h.NFECBlocks)
}

// IsData reports whether the header describes a data block rather than a
// parity block.
func (h FECHeader) IsData() bool {
	return h.BlockIndex < h.NBlocks
}

// PayloadLength reads the u16le length field of a packet. The slice must
// start at the length field (i.e. FECHeaderLen into the packet).
func PayloadLength(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func PutPayloadLength(b []byte, length uint16) {
	binary.LittleEndian.PutUint16(b, length)
}
