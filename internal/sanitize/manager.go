package sanitize

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadStats contains statistics about rule reloads.
type ReloadStats struct {
	LastReloadTime time.Time `json:"lastReloadTime,omitempty"`
	ReloadCount    int64     `json:"reloadCount"`
	LastError      error     `json:"-"`
	LastErrorStr   string    `json:"lastError,omitempty"`
}

// Manager provides hot-reload capable sanitizer management. It keeps the
// embedded default rules and optionally watches an external YAML file
// whose entries are merged additively on top of the defaults. Reads are
// lock-free using atomic.Value; the Sanitizer handed out is immutable, so
// in-flight batches keep the rules they started with.
type Manager struct {
	embedded     Rules        // Compiled-in defaults (immutable)
	current      atomic.Value // *Sanitizer - atomic swap for lock-free reads
	externalPath string       // Path to external override file
	watcher      *fsnotify.Watcher
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex // Protects reload operations
	stats        ReloadStats
	closed       bool
}

// NewManager creates a sanitizer manager. If externalPath is empty, only
// the default rules are used. If hotReload is true and externalPath is
// set, file changes trigger reloads.
func NewManager(externalPath string, hotReload bool) (*Manager, error) {
	m := &Manager{
		embedded:     DefaultRules(),
		externalPath: externalPath,
		stopCh:       make(chan struct{}),
	}

	m.current.Store(New(m.embedded))

	if externalPath != "" {
		if err := m.loadExternal(); err != nil {
			log.Warn().
				Err(err).
				Str("path", externalPath).
				Msg("Failed to load sanitizer rule overrides, using defaults")
		} else {
			log.Info().
				Str("path", externalPath).
				Msg("Loaded sanitizer rule overrides")
		}

		if hotReload {
			if err := m.startWatcher(); err != nil {
				log.Warn().
					Err(err).
					Str("path", externalPath).
					Msg("Failed to start file watcher, hot-reload disabled")
			} else {
				log.Info().
					Str("path", externalPath).
					Msg("Hot-reload enabled for sanitizer rules")
			}
		}
	}

	return m, nil
}

// Get returns the current Sanitizer.
// This is a lock-free O(1) operation safe for concurrent use.
func (m *Manager) Get() *Sanitizer {
	return m.current.Load().(*Sanitizer)
}

// Reload manually reloads rules from the external file. On failure the
// previous sanitizer remains in use.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.externalPath == "" {
		return fmt.Errorf("no external rules path configured")
	}
	return m.loadExternalLocked()
}

// Stats returns the current reload statistics.
func (m *Manager) Stats() ReloadStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats
	if stats.LastError != nil {
		stats.LastErrorStr = stats.LastError.Error()
	}
	return stats
}

// Close stops the file watcher and cleans up resources.
// Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

func (m *Manager) loadExternal() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadExternalLocked()
}

// loadExternalLocked loads rules from the external file.
// Must be called with m.mu held.
func (m *Manager) loadExternalLocked() error {
	data, err := os.ReadFile(m.externalPath)
	if err != nil {
		m.stats.LastError = err
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	override, err := ParseRules(data)
	if err != nil {
		m.stats.LastError = err
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	// Overrides add to the defaults; they can never re-enable content the
	// default rules remove.
	merged := m.embedded.Merge(override)

	// Atomic swap
	m.current.Store(New(merged))

	m.stats.LastReloadTime = time.Now()
	m.stats.ReloadCount++
	m.stats.LastError = nil

	log.Info().
		Int64("reload_count", m.stats.ReloadCount).
		Msg("Sanitizer rules hot-reloaded")

	return nil
}

// startWatcher starts the file watcher for hot-reload.
func (m *Manager) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(m.externalPath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	m.watcher = watcher

	m.wg.Add(1)
	go m.watchFile()

	return nil
}

// watchFile watches for file changes and triggers reloads.
func (m *Manager) watchFile() {
	defer m.wg.Done()

	// Debounce timer to coalesce rapid file changes
	const debounceDelay = 100 * time.Millisecond
	var debounceTimer *time.Timer
	var debouncing bool

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			// Only reload on write or create events
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			log.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("Sanitizer rules file changed")

			// Debounce: wait for rapid changes to settle
			if debouncing {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
				debounceTimer.Reset(debounceDelay)
			} else {
				debouncing = true
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := m.Reload(); err != nil {
						log.Warn().
							Err(err).
							Str("path", m.externalPath).
							Msg("Hot-reload failed, keeping previous rules")
					}
					debouncing = false
				})
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("File watcher error")

		case <-m.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}
