package wfb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/exp/rand"

	internalfec "github.com/appetito/wifibroadcast-bridge-1/internal/fec"
	"github.com/appetito/wifibroadcast-bridge-1/internal/protocol"
	"github.com/appetito/wifibroadcast-bridge-1/internal/wire"
)

var _ = Describe("FEC Decoder", func() {
	feed := func(dec *FECDecoder, blocks ...*FECBlock) {
		for _, blk := range blocks {
			dec.AddPacket(blk.WirePacket())
		}
	}

	Context("with a tiny buffer encoded as one data and one parity block", func() {
		var (
			buf    []byte
			blocks []*FECBlock
		)

		BeforeEach(func() {
			buf = []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a}
			blocks = NewFECBufferEncoder(1400, 0.5).EncodeBuffer(buf)
			Expect(blocks).To(HaveLen(2))
			Expect(blocks[0].Header().NBlocks).To(Equal(uint8(1)))
			Expect(blocks[0].Header().NFECBlocks).To(Equal(uint8(1)))
		})

		It("recovers the buffer from both blocks", func() {
			dec := NewFECDecoder()
			feed(dec, blocks...)
			Expect(drainDecoderBytes(dec)).To(Equal(buf))
		})

		It("releases the data block immediately without the parity block", func() {
			dec := NewFECDecoder()
			feed(dec, blocks[0])
			Expect(drainDecoderBytes(dec)).To(Equal(buf))
		})

		It("reconstructs the buffer from the parity block alone", func() {
			dec := NewFECDecoder()
			feed(dec, blocks[1])
			Expect(drainDecoderBytes(dec)).To(Equal(buf))
		})
	})

	It("recovers a group missing one data and one parity block", func() {
		rng := rand.New(rand.NewSource(2))
		buf := make([]byte, 8*1400)
		rng.Read(buf)
		blocks := NewFECBufferEncoder(1400, 0.25).EncodeBuffer(buf)
		Expect(blocks).To(HaveLen(10))
		Expect(blocks[0].Header().NBlocks).To(Equal(uint8(8)))
		Expect(blocks[0].Header().NFECBlocks).To(Equal(uint8(2)))

		dec := NewFECDecoder()
		for i, blk := range blocks {
			if i == 3 || i == 9 {
				continue
			}
			feed(dec, blk)
		}
		Expect(drainDecoderBytes(dec)).To(Equal(buf))
		Expect(dec.Stats().TotalBlocks).To(Equal(uint64(1)))
	})

	It("gives up on a group whose losses exceed the parity budget", func() {
		rng := rand.New(rand.NewSource(3))
		buf := make([]byte, 8*1400)
		rng.Read(buf)
		enc := NewFECBufferEncoder(1400, 0.25)
		blocks := enc.EncodeBuffer(buf)

		dec := NewFECDecoder()
		for i, blk := range blocks {
			if i == 1 || i == 3 || i == 5 {
				continue
			}
			feed(dec, blk)
		}
		// only the pre-gap prefix was released, the rest is unrecoverable
		Expect(drainDecoderBytes(dec)).To(Equal(buf[:1400]))
		Expect(dec.Stats().DroppedPackets).To(Equal(uint64(3)))
		Expect(dec.Stats().TotalBlocks).To(BeZero())

		// the next group resyncs the decoder and counts the abandoned one
		buf2 := make([]byte, 2*1400)
		rng.Read(buf2)
		feed(dec, enc.EncodeBuffer(buf2)...)
		Expect(drainDecoderBytes(dec)).To(Equal(buf2))
		Expect(dec.Stats().DroppedBlocks).To(BeNumerically(">=", 1))
		Expect(dec.Stats().TotalBlocks).To(Equal(uint64(1)))
	})

	It("delivers a reordered group in position order", func() {
		rng := rand.New(rand.NewSource(4))
		buf := make([]byte, 8*1400)
		rng.Read(buf)
		blocks := NewFECBufferEncoder(1400, 0.25).EncodeBuffer(buf)

		dec := NewFECDecoder()
		for _, i := range []int{2, 0, 1, 4, 3, 5, 6, 7} {
			feed(dec, blocks[i])
		}
		// nothing can be released while position 0 is outstanding
		Expect(drainDecoderBlocks(dec)).To(BeEmpty())

		feed(dec, blocks[8], blocks[9])
		out := drainDecoderBlocks(dec)
		Expect(out).To(HaveLen(8))
		for i, blk := range out {
			Expect(blk.Header().BlockIndex).To(Equal(uint8(i)))
		}
		concat := []byte{}
		for _, blk := range out {
			concat = append(concat, blk.Payload()...)
		}
		Expect(concat).To(Equal(buf))
	})

	It("stays in sync across a sequence number wrap", func() {
		enc := NewFECEncoder(1, 1, 64, 250)
		dec := NewFECDecoder()
		var want []byte
		for i := 0; i < 300; i++ {
			blk := enc.NextBlock(1)
			blk.Payload()[0] = byte(i)
			want = append(want, byte(i))
			enc.AddBlock(blk)
			feed(dec, drainEncoder(enc)...)
		}
		Expect(drainDecoderBytes(dec)).To(Equal(want))
		Expect(dec.Stats().TotalBlocks).To(Equal(uint64(300)))
		Expect(dec.Stats().LostSync).To(BeZero())
		Expect(dec.Stats().DroppedBlocks).To(BeZero())
	})

	It("counts a break in an unfinished sequence", func() {
		enc := NewFECEncoder(2, 1, 64, 1)
		dec := NewFECDecoder()

		enc.AddBlock(enc.NextBlock(4))
		enc.AddBlock(enc.NextBlock(4))
		groupA := drainEncoder(enc)
		enc.AddBlock(enc.NextBlock(4))
		enc.AddBlock(enc.NextBlock(4))
		groupB := drainEncoder(enc)

		feed(dec, groupA[0]) // group 1 stays unfinished
		feed(dec, groupB...)

		Expect(dec.Stats().DroppedBlocks).To(Equal(uint64(1)))
		Expect(dec.Stats().DroppedPackets).To(Equal(uint64(3)))
		Expect(dec.Stats().TotalBlocks).To(Equal(uint64(1)))
	})

	It("detects lost synchronization on backward sequence numbers", func() {
		front := NewFECEncoder(2, 1, 64, 10)
		stale := NewFECEncoder(2, 1, 64, 5)
		dec := NewFECDecoder()

		front.AddBlock(front.NextBlock(4))
		front.AddBlock(front.NextBlock(4))
		current := drainEncoder(front)
		stale.AddBlock(stale.NextBlock(4))
		stale.AddBlock(stale.NextBlock(4))
		old := drainEncoder(stale)

		feed(dec, current[0]) // group active
		feed(dec, old[0])     // sequence moved backwards
		Expect(dec.Stats().LostSync).To(Equal(uint64(1)))
	})

	It("discards duplicated packets", func() {
		rng := rand.New(rand.NewSource(5))
		buf := make([]byte, 4*100)
		rng.Read(buf)
		blocks := NewFECBufferEncoder(100, 0.5).EncodeBuffer(buf)

		dec := NewFECDecoder()
		feed(dec, blocks[0], blocks[0], blocks[1], blocks[2], blocks[3])
		Expect(drainDecoderBytes(dec)).To(Equal(buf))
		Expect(dec.Stats().DroppedPackets).To(Equal(uint64(1)))
	})

	It("absorbs malformed packets", func() {
		dec := NewFECDecoder()
		dec.AddPacket([]byte{0x01, 0x02, 0x03})
		dec.AddPacket(nil)
		Expect(dec.Stats().TotalPackets).To(Equal(uint64(2)))
		Expect(dec.Stats().DroppedPackets).To(Equal(uint64(2)))
		Expect(drainDecoderBlocks(dec)).To(BeEmpty())

		// the decoder still works afterwards
		buf := []byte("hello, lossy world")
		feed(dec, NewFECBufferEncoder(1400, 0.5).EncodeBuffer(buf)...)
		Expect(drainDecoderBytes(dec)).To(Equal(buf))
	})

	It("passes uncoded streams straight through", func() {
		enc := NewFECEncoder(0, 0, 1400, 1)
		dec := NewFECDecoder()
		var want []byte
		for i := 0; i < 5; i++ {
			blk := enc.NextBlock(3)
			copy(blk.Payload(), []byte{byte(i), byte(i), byte(i)})
			want = append(want, byte(i), byte(i), byte(i))
			enc.AddBlock(blk)
		}
		feed(dec, drainEncoder(enc)...)
		Expect(drainDecoderBytes(dec)).To(Equal(want))
	})

	It("drops a reconstructed shard whose length cannot fit", func() {
		// Build the group by hand so the second shard's length field holds
		// an impossible value; the parity is still consistent, so the
		// decoder reconstructs exactly that value and must reject it.
		const shardLen = 10
		d0 := make([]byte, shardLen)
		wire.PutPayloadLength(d0, 8)
		for i := wire.FECLengthFieldLen; i < shardLen; i++ {
			d0[i] = byte(i)
		}
		d1 := make([]byte, shardLen)
		wire.PutPayloadLength(d1, 0xfffb)
		parity := [][]byte{make([]byte, shardLen), make([]byte, shardLen)}
		coder, err := internalfec.NewBlockCoder(protocol.ReedSolomonFECScheme, 2, 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(coder.Encode([][]byte{d0, d1}, parity)).To(Succeed())

		pkt := func(idx uint8, shard []byte) []byte {
			h := wire.FECHeader{SeqNum: 9, BlockIndex: idx, NBlocks: 2, NFECBlocks: 2}
			return append(h.Append(nil), shard...)
		}

		dec := NewFECDecoder()
		dec.AddPacket(pkt(0, d0))
		dec.AddPacket(pkt(2, parity[0]))

		out := drainDecoderBlocks(dec)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Header().BlockIndex).To(Equal(uint8(0)))
		Expect(dec.Stats().DroppedBlocks).To(Equal(uint64(1)))
		Expect(dec.Stats().TotalBlocks).To(Equal(uint64(1)))
	})

	It("reconstructs an all-parity group", func() {
		// two zero parity shards of a (2, 2) group solve to zero data
		pkt := func(idx uint8, shard []byte) []byte {
			h := wire.FECHeader{SeqNum: 3, BlockIndex: idx, NBlocks: 2, NFECBlocks: 2}
			return append(h.Append(nil), shard...)
		}
		dec := NewFECDecoder()
		dec.AddPacket(pkt(2, make([]byte, 10)))
		dec.AddPacket(pkt(3, make([]byte, 10)))

		out := drainDecoderBlocks(dec)
		Expect(out).To(HaveLen(2))
		for i, blk := range out {
			Expect(blk.Header().BlockIndex).To(Equal(uint8(i)))
			Expect(blk.Payload()).To(BeEmpty())
		}
		Expect(dec.Stats().DroppedBlocks).To(BeZero())
	})

	It("keeps every counter monotonic under random input", func() {
		rng := rand.New(rand.NewSource(6))
		dec := NewFECDecoder()
		prev := dec.Stats()
		for i := 0; i < 500; i++ {
			pkt := make([]byte, rng.Intn(64))
			rng.Read(pkt)
			dec.AddPacket(pkt)
			cur := dec.Stats()
			Expect(cur.TotalBlocks).To(BeNumerically(">=", prev.TotalBlocks))
			Expect(cur.TotalPackets).To(BeNumerically(">=", prev.TotalPackets))
			Expect(cur.DroppedBlocks).To(BeNumerically(">=", prev.DroppedBlocks))
			Expect(cur.DroppedPackets).To(BeNumerically(">=", prev.DroppedPackets))
			Expect(cur.LostSync).To(BeNumerically(">=", prev.LostSync))
			Expect(cur.Bytes).To(BeNumerically(">=", prev.Bytes))
			prev = cur
		}
		drainDecoderBlocks(dec)
	})

	It("round-trips random buffers losslessly", func() {
		rng := rand.New(rand.NewSource(7))
		const maxPayload = 512
		enc := NewFECBufferEncoder(maxPayload, 0.5)
		for i := 0; i < 1000; i++ {
			buf := make([]byte, 10+rng.Intn(255*maxPayload-10))
			rng.Read(buf)
			blocks := enc.EncodeBuffer(buf)
			Expect(blocks).ToNot(BeEmpty())

			dec := NewFECDecoder()
			feed(dec, blocks...)
			Expect(drainDecoderBytes(dec)).To(Equal(buf))
		}
	})

	It("recovers with the Vandermonde scheme as well", func() {
		rng := rand.New(rand.NewSource(8))
		buf := make([]byte, 6*200)
		rng.Read(buf)
		blocks := NewFECBufferEncoderWithScheme(protocol.VandermondeFECScheme, 200, 0.5).EncodeBuffer(buf)
		Expect(blocks).To(HaveLen(9))

		dec := NewFECDecoderWithScheme(protocol.VandermondeFECScheme)
		for i, blk := range blocks {
			if i == 0 || i == 4 {
				continue
			}
			feed(dec, blk)
		}
		Expect(drainDecoderBytes(dec)).To(Equal(buf))
	})
})
