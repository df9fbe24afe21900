// Package persist implements the Magic-framed configuration image stored
// in the fixed NVS partition: the write path that serializes the active
// filter sets to flash, and the boot-time read path that replays them
// back through the same datagram dispatch the network uses.
package persist

import (
	"context"
	"io"

	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/filter"
	"github.com/Simsys/espcand/internal/proto"
	"github.com/Simsys/espcand/internal/rxbuf"
)

// ImageSize is the fixed region size read at boot and the maximum
// serialized image Save may produce (spec.md §4.7: "Size ≥ 128 bytes").
const ImageSize = 128

// ReadWriterAt is satisfied by *os.File opened on a regular file standing
// in for the NVS partition: a fixed-size region addressed by byte offset.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Store owns the NVS region exclusively; every write to it is funneled
// through Save so no locking is required (spec.md §9).
type Store struct {
	rw ReadWriterAt
}

// NewStore wraps rw as the NVS-backed persistence handle.
func NewStore(rw ReadWriterAt) *Store {
	return &Store{rw: rw}
}

// Save serializes the Magic datagram, every PFilter in insertion order as
// a PFilter(PrePFilter) datagram, every NFilter in insertion order, and a
// trailing End, then writes the whole image to offset 0.
func (s *Store) Save(pfilters *filter.PFilters, nfilters *filter.NFilters) error {
	ser := proto.NewSer(ImageSize)
	if err := datagram.Serialize(datagram.Item{Kind: datagram.MagicItem, Magic: true}, ser); err != nil {
		return err
	}
	for _, f := range pfilters.Items() {
		item := datagram.Item{Kind: datagram.PFilterItem, PFilter: f.ToPrePFilter()}
		if err := datagram.Serialize(item, ser); err != nil {
			return err
		}
	}
	for _, f := range nfilters.Items() {
		item := datagram.Item{Kind: datagram.NFilterItem, NFilter: f}
		if err := datagram.Serialize(item, ser); err != nil {
			return err
		}
	}
	if err := datagram.Serialize(datagram.Item{Kind: datagram.End}, ser); err != nil {
		return err
	}
	_, err := s.rw.WriteAt(ser.Bytes(), 0)
	return err
}

// Load reads the first ImageSize bytes of the NVS region and replays
// every datagram between Magic and End to emit, as if each had arrived
// from the network. It discards silently (returns nil) if the region
// doesn't open with Magic, or if a datagram fails to parse — both
// indicate unwritten or corrupted flash rather than a component failure.
func (s *Store) Load(ctx context.Context, emit func(datagram.Item) error) error {
	raw := make([]byte, ImageSize)
	if _, err := s.rw.ReadAt(raw, 0); err != nil {
		return err
	}
	buf := rxbuf.NewBuffer(ImageSize)
	copy(buf.Slice(), raw)
	buf.SetHead(ImageSize)

	latched := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		deser := proto.NewDeser(ImageSize)
		if err := buf.Read(deser); err != nil {
			return nil
		}
		item, err := datagram.Deserialize(deser)
		if err != nil {
			return nil
		}
		if !latched {
			if item.Kind != datagram.MagicItem {
				return nil
			}
			latched = true
			continue
		}
		if item.Kind == datagram.End {
			return nil
		}
		if err := emit(item); err != nil {
			return err
		}
	}
}
