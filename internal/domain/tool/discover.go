package tool

import (
	"fmt"
	"log/slog"
)

// Loader constructs one tool descriptor. Loaders are listed explicitly by the
// composition root; there is no reflective discovery.
type Loader func() (Descriptor, error)

// Discover runs every loader and registers the resulting tools. A loader that
// fails (or panics) or produces a rejected descriptor is logged and skipped;
// the remaining loaders still run. It returns the number of tools registered.
func Discover(reg *Registry, loaders ...Loader) int {
	registered := 0
	for i, load := range loaders {
		d, err := safeLoad(load)
		if err != nil {
			slog.Error("tool discovery failed", "loader", i, "error", err)
			continue
		}
		if err := reg.Register(d); err != nil {
			slog.Error("tool registration rejected", "tool", d.Name, "error", err)
			continue
		}
		slog.Info("registered tool", "tool", d.Name, "tags", d.Tags)
		registered++
	}
	return registered
}

func safeLoad(load Loader) (d Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return load()
}
