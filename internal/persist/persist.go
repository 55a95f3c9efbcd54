// Package persist mirrors the durable subset of the store into client
// storage and restores it on startup.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/storage"
	"github.com/Kerhoff/toyrent/internal/store"
)

const (
	// DefaultKey is the storage key holding the persisted state
	DefaultKey = "toyrent-storage"
	// Version of the envelope format
	Version = 1

	writeTimeout = 5 * time.Second
)

// Envelope is the stored document
type Envelope struct {
	State   store.Persisted `json:"state"`
	Version int             `json:"version"`
}

// Persister writes the persisted subset of the store after every change
type Persister struct {
	store   *store.Store
	storage storage.Storage
	logger  *logrus.Entry
	key     string

	mu          sync.Mutex
	unsubscribe func()
}

// New creates a persister. An empty key means DefaultKey.
func New(s *store.Store, st storage.Storage, logger *logrus.Logger, key string) *Persister {
	if key == "" {
		key = DefaultKey
	}
	return &Persister{
		store:   s,
		storage: st,
		logger:  logger.WithFields(logrus.Fields{"component": "persist", "key": key}),
		key:     key,
	}
}

// Hydrate restores the store from storage. A missing key leaves the store
// as is; an envelope of another version is ignored.
func (p *Persister) Hydrate(ctx context.Context) error {
	raw, err := p.storage.Get(ctx, p.key)
	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Debug("Nothing to restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read persisted state: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode persisted state: %w", err)
	}
	if env.Version != Version {
		p.logger.WithField("version", env.Version).Warn("Ignoring persisted state of unknown version")
		return nil
	}

	p.store.Restore(env.State)
	p.logger.Info("Restored persisted state")
	return nil
}

// Save writes the given snapshot
func (p *Persister) Save(ctx context.Context, st store.State) error {
	raw, err := json.Marshal(Envelope{State: st.Persisted(), Version: Version})
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := p.storage.Set(ctx, p.key, raw); err != nil {
		return fmt.Errorf("failed to write persisted state: %w", err)
	}
	return nil
}

// Start subscribes to the store. Writes happen inside the change
// notification, so they are ordered with the changes themselves.
func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		return
	}
	p.unsubscribe = p.store.Subscribe(func(st store.State) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := p.Save(ctx, st); err != nil {
			p.logger.WithError(err).Error("Failed to persist state")
		}
	})
}

// Stop unsubscribes from the store
func (p *Persister) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}
