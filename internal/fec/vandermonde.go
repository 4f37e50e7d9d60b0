package fec

import (
	"fmt"
	"sync"

	"github.com/vivint/infectious"
)

// vandermondeCoder mirrors the coding used by the original wifibroadcast
// stack: a systematic Vandermonde Reed-Solomon code over GF(2^8) with
// explicit share numbers.
type vandermondeCoder struct {
	fc      *infectious.FEC
	nData   int
	nParity int
}

var (
	vdFECsMx sync.Mutex
	vdFECs   = make(map[[2]int]*infectious.FEC)
)

func newVandermondeCoder(nData, nParity int) (*vandermondeCoder, error) {
	if err := validateGroupShape(nData, nParity); err != nil {
		return nil, err
	}
	key := [2]int{nData, nParity}
	vdFECsMx.Lock()
	fc, ok := vdFECs[key]
	if !ok {
		var err error
		fc, err = infectious.NewFEC(nData, nData+nParity)
		if err != nil {
			vdFECsMx.Unlock()
			return nil, err
		}
		vdFECs[key] = fc
	}
	vdFECsMx.Unlock()
	return &vandermondeCoder{fc: fc, nData: nData, nParity: nParity}, nil
}

func (c *vandermondeCoder) Encode(data [][]byte, parity [][]byte) error {
	if len(data) != c.nData || len(parity) != c.nParity {
		return fmt.Errorf("expected %d data and %d parity shards, got %d and %d", c.nData, c.nParity, len(data), len(parity))
	}
	shardLen := len(data[0])
	input := make([]byte, 0, c.nData*shardLen)
	for _, d := range data {
		if len(d) != shardLen {
			return fmt.Errorf("data shards are not of equal length")
		}
		input = append(input, d...)
	}
	return c.fc.Encode(input, func(s infectious.Share) {
		// the code is systematic: shares below nData are the input shards
		if s.Number >= c.nData {
			copy(parity[s.Number-c.nData], s.Data)
		}
	})
}

func (c *vandermondeCoder) Reconstruct(data [][]byte, parity [][]byte, parityIndexes []int, missing []int) error {
	if len(data) != c.nData {
		return fmt.Errorf("expected %d data shards, got %d", c.nData, len(data))
	}
	if len(parity) != len(parityIndexes) {
		return fmt.Errorf("got %d parity shards but %d parity indexes", len(parity), len(parityIndexes))
	}
	shardLen := len(data[0])
	isMissing := make(map[int]bool, len(missing))
	for _, i := range missing {
		if i < 0 || i >= c.nData {
			return fmt.Errorf("missing shard index %d outside of [0, %d)", i, c.nData)
		}
		isMissing[i] = true
	}
	shares := make([]infectious.Share, 0, c.nData+len(parity))
	for i, d := range data {
		if !isMissing[i] {
			shares = append(shares, infectious.Share{Number: i, Data: d})
		}
	}
	for j, p := range parity {
		idx := parityIndexes[j]
		if idx < 0 || idx >= c.nParity {
			return fmt.Errorf("parity shard index %d outside of [0, %d)", idx, c.nParity)
		}
		shares = append(shares, infectious.Share{Number: c.nData + idx, Data: p})
	}
	result, err := c.fc.Decode(make([]byte, 0, c.nData*shardLen), shares)
	if err != nil {
		return fmt.Errorf("unable to reconstruct data shards: %w", err)
	}
	for _, i := range missing {
		copy(data[i], result[i*shardLen:(i+1)*shardLen])
	}
	return nil
}
