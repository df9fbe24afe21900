package uart

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Simsys/espcand/internal/canframe"
)

// fakePort implements Port for tests.
type fakePort struct {
	reads [][]byte
	idx   int
	mu    sync.Mutex
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.reads) {
		time.Sleep(10 * time.Millisecond)
		return 0, io.EOF
	}
	chunk := f.reads[f.idx]
	f.idx++
	return copy(p, chunk), nil
}

func (f *fakePort) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakePort) Close() error                 { return nil }

func TestDriverDecodesFromFakePort(t *testing.T) {
	enc := Encode(canframe.Frame{ID: 0x7b, DLC: 2, Data: [8]byte{1, 2}})
	fp := &fakePort{reads: [][]byte{enc}}
	d := wrap(context.Background(), fp, 4, nil)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	got, err := d.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 0x7b {
		t.Fatalf("got %+v", got)
	}
}
