// Package catalog resolves announcement keys into display text. Catalogs
// load from a YAML file and hot-reload when the file changes, so operators
// can reword announcements without a restart.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/WOW112/jingdianwow2/internal/telemetry"
)

// fileFormat is the on-disk shape. Message values are fmt format strings;
// the verbs must match what the key's caller passes.
type fileFormat struct {
	Messages   map[string]string `yaml:"messages"`
	Broadcasts []string          `yaml:"broadcasts"`
}

// Catalog holds the current message table. Safe for concurrent use; reloads
// swap the table atomically under the write lock.
type Catalog struct {
	mu         sync.RWMutex
	messages   map[string]string
	broadcasts []string

	path   string
	logger telemetry.Logger
}

// Default returns the built-in English catalog.
func Default() *Catalog {
	return &Catalog{
		messages: map[string]string{
			"shutdown.time":      "Server is shutting down in %s",
			"restart.time":       "Server is restarting in %s",
			"shutdown.cancelled": "Server shutdown cancelled",
			"restart.cancelled":  "Server restart cancelled",
		},
	}
}

// Load reads a catalog file. Keys missing from the file fall back to the
// built-in defaults.
func Load(path string, logger telemetry.Logger) (*Catalog, error) {
	c := Default()
	c.path = path
	c.logger = logger
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) reload() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", c.path, err)
	}
	var parsed fileFormat
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse catalog %s: %w", c.path, err)
	}

	merged := make(map[string]string, len(parsed.Messages)+4)
	for k, v := range Default().messages {
		merged[k] = v
	}
	for k, v := range parsed.Messages {
		merged[k] = v
	}

	c.mu.Lock()
	c.messages = merged
	c.broadcasts = parsed.Broadcasts
	c.mu.Unlock()
	return nil
}

// Render resolves a key with its arguments. ok is false for unknown keys.
func (c *Catalog) Render(key string, args ...any) (string, bool) {
	c.mu.RLock()
	format, ok := c.messages[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if len(args) == 0 {
		return format, true
	}
	return fmt.Sprintf(format, args...), true
}

// Broadcasts lists the rotating announcement texts, in file order.
func (c *Catalog) Broadcasts() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.broadcasts) == 0 {
		return nil
	}
	out := make([]string, len(c.broadcasts))
	copy(out, c.broadcasts)
	return out
}

// Watch reloads the catalog whenever its file changes, until ctx is done.
// Editors usually replace the file rather than write in place, so the watch
// covers the parent directory and filters on the file name.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch catalog dir %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(c.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := c.reload(); err != nil {
					if c.logger != nil {
						c.logger.Printf("[catalog] reload failed: %v", err)
					}
					continue
				}
				if c.logger != nil {
					c.logger.Printf("[catalog] reloaded %s", c.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if c.logger != nil {
					c.logger.Printf("[catalog] watch error: %v", err)
				}
			}
		}
	}()
	return nil
}
