package logging

import (
	"io"
	"sync"

	"github.com/francoispqt/gojay"

	wfb "github.com/appetito/wifibroadcast-bridge-1"
)

// A StatsTracer serializes decoder statistics as one JSON object per line.
// The bridge owns the sink: a log file, a UDP status socket, stdout.
//
// The tracer is safe for concurrent use; every link of the bridge reports
// through the same tracer.
type StatsTracer struct {
	mx   sync.Mutex
	w    io.Writer
	last map[string]wfb.FECDecoderStats
}

func NewStatsTracer(w io.Writer) *StatsTracer {
	return &StatsTracer{
		w:    w,
		last: make(map[string]wfb.FECDecoderStats),
	}
}

// Record writes a snapshot of a link's counters.
func (t *StatsTracer) Record(link string, stats wfb.FECDecoderStats) error {
	return t.write(&statsRecord{Type: "snapshot", Link: link, Stats: stats})
}

// RecordDelta writes the change of a link's counters since the previous
// RecordDelta call for the same link.
func (t *StatsTracer) RecordDelta(link string, stats wfb.FECDecoderStats) error {
	t.mx.Lock()
	prev := t.last[link]
	t.last[link] = stats
	t.mx.Unlock()
	return t.write(&statsRecord{Type: "delta", Link: link, Stats: stats.Sub(prev)})
}

func (t *StatsTracer) write(r *statsRecord) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	enc := gojay.BorrowEncoder(t.w)
	defer enc.Release()
	if err := enc.EncodeObject(r); err != nil {
		return err
	}
	_, err := t.w.Write([]byte{'\n'})
	return err
}

type statsRecord struct {
	Type  string
	Link  string
	Stats wfb.FECDecoderStats
}

var _ gojay.MarshalerJSONObject = &statsRecord{}

func (r *statsRecord) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("type", r.Type)
	enc.StringKey("link", r.Link)
	enc.ObjectKey("stats", (*statsJSON)(&r.Stats))
}

func (r *statsRecord) IsNil() bool { return r == nil }

type statsJSON wfb.FECDecoderStats

func (s *statsJSON) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint64Key("total_blocks", s.TotalBlocks)
	enc.Uint64Key("total_packets", s.TotalPackets)
	enc.Uint64Key("dropped_blocks", s.DroppedBlocks)
	enc.Uint64Key("dropped_packets", s.DroppedPackets)
	enc.Uint64Key("lost_sync", s.LostSync)
	enc.Uint64Key("bytes", s.Bytes)
}

func (s *statsJSON) IsNil() bool { return s == nil }
