// Package storage provides the top-level StorageManager with pluggable
// backends.
package storage

import (
	"fmt"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/interfaces"
	"github.com/chaintax/chaintax/internal/storage/badger"
	"github.com/chaintax/chaintax/internal/storage/memory"
)

// Backend type constants.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// backend is the union of the per-entity storage interfaces plus Close,
// satisfied by both badger and memory stores.
type backend interface {
	interfaces.TransactionStorage
	interfaces.LinkStorage
	interfaces.LotStorage
	Close() error
}

// Manager implements interfaces.StorageManager over a single backend.
type Manager struct {
	store  backend
	logger *common.Logger
}

// NewManager creates a StorageManager for the configured backend.
/// Supported backends: "badger" (default), "memory".
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	name := config.Storage.Backend
	if name == "" {
		name = BackendBadger
	}

	var store backend
	switch name {
	case BackendBadger:
		badgerStore, err := badger.NewStore(logger, config.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger store: %w", err)
		}
		store = badgerStore
	case BackendMemory:
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: badger, memory)", name)
	}

	logger.Info().Str("backend", name).Str("path", config.Storage.Path).Msg("Storage manager initialized")
	return &Manager{store: store, logger: logger}, nil
}

// NewMemoryManager wraps a fresh in-memory backend, used by tests.
func NewMemoryManager(logger *common.Logger) *Manager {
	return &Manager{store: memory.NewStore(), logger: logger}
}

func (m *Manager) Transactions() interfaces.TransactionStorage {
	return m.store
}

func (m *Manager) Links() interfaces.LinkStorage {
	return m.store
}

func (m *Manager) Lots() interfaces.LotStorage {
	return m.store
}

func (m *Manager) Close() error {
	return m.store.Close()
}
