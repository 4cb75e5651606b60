package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// RouteTableWatcher watches the terminology route table YAML file for
// changes and invokes onChange with the freshly parsed table, letting
// cmd/pipeline-worker call (*terminology.Router).Reload without a restart
// (SPEC_FULL.md §11: entity_type→provider list can change without a
// restart). Adapted from the teacher's config hot-reload needs, which never
// had one — this is new wiring for fsnotify, grounded on its own examples
// (DESIGN.md).
type RouteTableWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	done    chan struct{}
}

// WatchRouteTable starts watching path and calls onChange(table) after every
// write event that parses successfully. Parse errors are logged and ignored
// — the router keeps running on its last-known-good table.
func WatchRouteTable(path string, onChange func(table map[string][]string)) (*RouteTableWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	rtw := &RouteTableWatcher{watcher: w, path: path, done: make(chan struct{})}
	go rtw.run(onChange)
	return rtw, nil
}

func (w *RouteTableWatcher) run(onChange func(table map[string][]string)) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			table, err := loadRouteTableYAML(w.path)
			if err != nil {
				slog.Error("terminology route table reload failed", "path", w.path, "error", err)
				continue
			}
			slog.Info("terminology route table reloaded", "path", w.path)
			onChange(table)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("route table watcher error", "error", err)
		}
	}
}

// Stop closes the underlying fsnotify watcher and waits for the run loop to exit.
func (w *RouteTableWatcher) Stop() {
	w.watcher.Close()
	<-w.done
}

// loadRouteTableYAML reads and parses the route table at path. Kept
// independent of pkg/terminology.RouteTable's domain.EntityType keys so
// pkg/config doesn't import pkg/domain just to re-expand env vars and
// unmarshal YAML; callers convert the plain string-keyed map into
// terminology.RouteTable.
func loadRouteTableYAML(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table %s: %w", path, err)
	}
	data = ExpandEnv(data)

	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return table, nil
}
