package main

import (
	"bytes"
	"log"
	"math/rand"
	"os"
	"time"

	wfb "github.com/appetito/wifibroadcast-bridge-1"
	"github.com/appetito/wifibroadcast-bridge-1/logging"
)

// Pushes random buffers through the codec over a simulated lossy,
// reordering channel and prints the decoder stats as JSON lines.
func main() {
	const (
		iterations  = 200
		maxPayload  = 1400
		fecRatio    = 0.5
		lossRate    = 0.15
		reorderRate = 0.1
	)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	enc := wfb.NewFECBufferEncoder(maxPayload, fecRatio)
	dec := wfb.NewFECDecoder()
	tracer := logging.NewStatsTracer(os.Stdout)

	var sent, recovered int
	for i := 0; i < iterations; i++ {
		buf := make([]byte, 10+rng.Intn(16*maxPayload))
		rng.Read(buf)

		blocks := enc.EncodeBuffer(buf)
		if len(blocks) == 0 {
			log.Fatalf("buffer of %d bytes produced no blocks", len(buf))
		}
		sent += len(blocks)

		pkts := make([][]byte, 0, len(blocks))
		for _, blk := range blocks {
			if rng.Float64() < lossRate {
				continue
			}
			pkts = append(pkts, blk.WirePacket())
		}
		for j := range pkts {
			// swap the occasional neighbor to simulate reordering
			if j > 0 && rng.Float64() < reorderRate {
				pkts[j-1], pkts[j] = pkts[j], pkts[j-1]
			}
		}
		for _, pkt := range pkts {
			dec.AddPacket(pkt)
		}

		var out bytes.Buffer
		for blk := dec.GetBlock(); blk != nil; blk = dec.GetBlock() {
			out.Write(blk.Payload())
		}
		if bytes.Equal(out.Bytes(), buf) {
			recovered++
		}

		if (i+1)%50 == 0 {
			if err := tracer.RecordDelta("downlink", dec.Stats()); err != nil {
				log.Fatal(err)
			}
		}
	}

	log.Printf("recovered %d/%d buffers from %d blocks at %.0f%% loss", recovered, iterations, sent, 100*lossRate)
}
