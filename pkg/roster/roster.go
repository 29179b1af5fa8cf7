package roster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/racecontroll/racecontrol/log"
)

type (
	Driver struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		ShortName string `yaml:"shortname"`
	}
	file struct {
		Drivers []Driver `yaml:"drivers"`
	}

	// Roster resolves driver ids to display names. It is safe for
	// concurrent use and may be reloaded while in use.
	Roster struct {
		path    string
		l       *log.Logger
		mu      sync.RWMutex
		drivers map[string]Driver
	}
	Option func(*Roster)
)

func WithLogger(l *log.Logger) Option {
	return func(r *Roster) {
		r.l = l
	}
}

// Load reads the roster from a yaml file.
func Load(path string, opts ...Option) (*Roster, error) {
	r := &Roster{
		path:    path,
		l:       log.Default().Named("roster"),
		drivers: map[string]Driver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Parse decodes roster yaml content.
func Parse(data []byte) (map[string]Driver, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	ret := make(map[string]Driver, len(f.Drivers))
	for i, d := range f.Drivers {
		if d.ID == "" {
			return nil, fmt.Errorf("parse roster: driver entry %d has no id", i+1)
		}
		if _, dup := ret[d.ID]; dup {
			return nil, fmt.Errorf("parse roster: duplicate driver id %q", d.ID)
		}
		ret[d.ID] = d
	}
	return ret, nil
}

// Name returns the display name of a driver. Unknown drivers are shown
// by their id.
func (r *Roster) Name(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.drivers[id]; ok && d.Name != "" {
		return d.Name
	}
	return id
}

func (r *Roster) Driver(id string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	return d, ok
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

func (r *Roster) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	// a truncated file shows up while it is rewritten
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("read roster: %s is empty", r.path)
	}
	drivers, err := Parse(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.drivers = drivers
	r.mu.Unlock()
	r.l.Debug("roster loaded", log.String("file", r.path), log.Int("drivers", len(drivers)))
	return nil
}

// Watch reloads the roster whenever the file changes until ctx is done.
// A broken file keeps the previous content.
//
//nolint:gocognit // event loop
func (r *Roster) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// watch the directory, editors replace files instead of writing them
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch roster: %w", err)
	}
	target := filepath.Clean(r.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				r.l.Debug("context done, stopping roster watch")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				r.l.Info("roster changed, reloading", log.String("file", event.Name))
				if err := r.reload(); err != nil {
					r.l.Warn("could not reload roster", log.ErrorField(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.l.Error("watcher error", log.ErrorField(err))
			}
		}
	}()
	return nil
}
