package storage

import (
	"fmt"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the database.Storage
// interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.BlockData
}

// NewMemory constructs a Memory value for use.
func NewMemory() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified database block and stores it in memory.
func (m *Memory) Write(blockData database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := len(m.blocks)
	if database.Height(l+1) != blockData.Header.Height {
		return fmt.Errorf("%w: got %d, exp %d", database.ErrOutOfOrder, blockData.Header.Height, l+1)
	}

	m.blocks = append(m.blocks, blockData)

	return nil
}

// Read locates and returns the contents of the specified block by height.
func (m *Memory) Read(height database.Height) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if height == 0 || uint64(height) > uint64(len(m.blocks)) {
		return database.BlockData{}, fmt.Errorf("%w: height %d", database.ErrNotFound, height)
	}

	return m.blocks[height-1], nil
}

// Height returns the number of blocks held in memory.
func (m *Memory) Height() (database.Height, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return database.Height(len(m.blocks)), nil
}

// DropAfter removes the blocks above the specified height.
func (m *Memory) DropAfter(height database.Height) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uint64(height) < uint64(len(m.blocks)) {
		m.blocks = m.blocks[:height]
	}

	return nil
}
