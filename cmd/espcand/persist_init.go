package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/filter"
	"github.com/Simsys/espcand/internal/persist"
)

// initStore opens path as the NVS-backing file, creating and
// zero-padding it to persist.ImageSize if it doesn't exist yet. An empty
// path disables persistence entirely (initStore returns nil, nil).
func initStore(path string) (*persist.Store, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < persist.ImageSize {
		if err := f.Truncate(persist.ImageSize); err != nil {
			return nil, err
		}
	}
	return persist.NewStore(f), nil
}

// loadStartupConfig replays the NVS image (if any) into pfilters/nfilters,
// exactly as the network input would populate them.
func loadStartupConfig(ctx context.Context, store *persist.Store, pfilters *filter.PFilters, nfilters *filter.NFilters, l *slog.Logger) {
	if store == nil {
		return
	}
	err := store.Load(ctx, func(item datagram.Item) error {
		switch item.Kind {
		case datagram.PFilterItem:
			return pfilters.Add(filter.NewPFilter(item.PFilter))
		case datagram.NFilterItem:
			return nfilters.Add(item.NFilter)
		}
		return nil
	})
	if err != nil {
		l.Error("persist_load_error", "error", err)
		return
	}
	l.Info("persist_loaded", "pfilters", len(pfilters.Items()), "nfilters", len(nfilters.Items()))
}
