package persist

import (
	"context"
	"testing"

	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/filter"
)

// memRegion implements ReadWriterAt over a fixed in-memory byte slice,
// standing in for the NVS partition.
type memRegion struct {
	data [ImageSize]byte
}

func (m *memRegion) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.data[off:]), nil
}

func (m *memRegion) WriteAt(p []byte, off int64) (int, error) {
	return copy(m.data[off:], p), nil
}

func TestSaveLoadRoundTrip(t *testing.T) {
	region := &memRegion{}
	store := NewStore(region)

	pfilters := filter.NewPFilters()
	extended, ones, zeros, err := filter.ParsePattern([]byte("1*0_0110_0**1"))
	if err != nil {
		t.Fatal(err)
	}
	pfilters.Add(filter.NewPFilter(filter.PrePFilter{Extended: extended, Duration: 250, Ones: ones, Zeros: zeros}))

	nfilters := filter.NewNFilters()
	nfilters.Add(filter.NFilter{Extended: extended, Ones: ones, Zeros: zeros})

	if err := store.Save(pfilters, nfilters); err != nil {
		t.Fatal(err)
	}

	var got []datagram.Item
	err = store.Load(context.Background(), func(item datagram.Item) error {
		got = append(got, item)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].Kind != datagram.PFilterItem || got[0].PFilter.Duration != 250 {
		t.Fatalf("got %+v", got[0])
	}
	if got[1].Kind != datagram.NFilterItem {
		t.Fatalf("got %+v", got[1])
	}
}

func TestLoadUninitializedFlashIsSilent(t *testing.T) {
	region := &memRegion{}
	store := NewStore(region)
	called := false
	err := store.Load(context.Background(), func(item datagram.Item) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("expected no items emitted from an unwritten region")
	}
}
