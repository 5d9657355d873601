// Package database handles all the lower level support for maintaining the
// blockchain in storage. It is the block store consumed by replay, harvesting
// and block processing.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/lru"
)

// Set of errors returned by the block store.
var (
	ErrNotFound    = errors.New("block not found")
	ErrOutOfOrder  = errors.New("block is out of order")
	ErrEmptyChain  = errors.New("chain has no blocks")
	ErrInvalidDrop = errors.New("invalid drop height")
)

// elementCacheSize is the number of recently loaded block elements kept
// in memory.
const elementCacheSize = 256

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain. Read must
// return an error wrapping ErrNotFound for heights not in storage.
type Storage interface {
	Write(blockData BlockData) error
	Read(height Height) (BlockData, error)
	Height() (Height, error)
	DropAfter(height Height) error
	Close() error
}

// =============================================================================

// Database manages access to the blocks in storage.
type Database struct {
	mu       sync.RWMutex
	storage  Storage
	height   Height
	elements *lru.Cache[Height, BlockElement]
}

// New constructs a new database over the specified storage.
func New(storage Storage) (*Database, error) {
	height, err := storage.Height()
	if err != nil {
		return nil, fmt.Errorf("reading storage height: %w", err)
	}

	db := Database{
		storage:  storage,
		height:   height,
		elements: lru.NewCache[Height, BlockElement](elementCacheSize),
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.elements.Purge()
	return db.storage.Close()
}

// ChainHeight returns the height of the last block in storage.
func (db *Database) ChainHeight() Height {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.height
}

// LoadBlock returns the block at the specified height.
func (db *Database) LoadBlock(height Height) (Block, error) {
	element, err := db.LoadBlockElement(height)
	if err != nil {
		return Block{}, err
	}

	return element.Block, nil
}

// LoadBlockElement returns the block and its hashes at the specified height.
func (db *Database) LoadBlockElement(height Height) (BlockElement, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.loadBlockElement(height)
}

// LastBlockElement returns the block element at the chain height.
func (db *Database) LastBlockElement() (BlockElement, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.height == 0 {
		return BlockElement{}, ErrEmptyChain
	}

	return db.loadBlockElement(db.height)
}

// SaveBlock writes the block element to storage. The element must be the
// block following the current chain height.
func (db *Database) SaveBlock(element BlockElement) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	height := element.Block.Header.Height
	if height != db.height+1 {
		return fmt.Errorf("%w: got %d, exp %d", ErrOutOfOrder, height, db.height+1)
	}

	if err := db.storage.Write(NewBlockData(element)); err != nil {
		return fmt.Errorf("writing block %d: %w", height, err)
	}

	db.height = height
	db.elements.Add(height, element)

	return nil
}

// DropBlocksAfter removes all the blocks above the specified height.
func (db *Database) DropBlocksAfter(height Height) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if height > db.height {
		return fmt.Errorf("%w: %d is above chain height %d", ErrInvalidDrop, height, db.height)
	}

	if err := db.storage.DropAfter(height); err != nil {
		return fmt.Errorf("dropping blocks after %d: %w", height, err)
	}

	for h := height + 1; h <= db.height; h++ {
		db.elements.Remove(h)
	}
	db.height = height

	return nil
}

// =============================================================================

func (db *Database) loadBlockElement(height Height) (BlockElement, error) {
	if height == 0 || height > db.height {
		return BlockElement{}, fmt.Errorf("%w: height %d, chain height %d", ErrNotFound, height, db.height)
	}

	if element, exists := db.elements.Get(height); exists {
		return element, nil
	}

	blockData, err := db.storage.Read(height)
	if err != nil {
		return BlockElement{}, fmt.Errorf("reading block %d: %w", height, err)
	}

	element, err := ToBlockElement(blockData)
	if err != nil {
		return BlockElement{}, err
	}

	db.elements.Add(height, element)

	return element, nil
}
