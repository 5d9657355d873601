package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/golang/snappy"
	"github.com/syndtr/goleveldb/leveldb"
)

// Key layout inside the leveldb database.
var (
	heightKey   = []byte("chain-height")
	blockPrefix = []byte("b")
)

// LevelDB represents the serialization implementation for reading and storing
// blocks inside a leveldb database. Blocks are stored as snappy compressed
// json keyed by their big endian height. This implements the
// database.Storage interface.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens or creates the leveldb database at the specified path.
func NewLevelDB(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb %s: %w", dbPath, err)
	}

	return &LevelDB{db: db}, nil
}

// Close closes the leveldb database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Write stores the block and moves the recorded chain height forward in a
// single batch.
func (l *LevelDB) Write(blockData database.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(blockKey(blockData.Header.Height), snappy.Encode(nil, data))
	batch.Put(heightKey, encodeHeight(blockData.Header.Height))

	return l.db.Write(batch, nil)
}

// Read locates and returns the contents of the specified block by height.
func (l *LevelDB) Read(height database.Height) (database.BlockData, error) {
	value, err := l.db.Get(blockKey(height), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.BlockData{}, fmt.Errorf("%w: height %d", database.ErrNotFound, height)
		}
		return database.BlockData{}, err
	}

	data, err := snappy.Decode(nil, value)
	if err != nil {
		return database.BlockData{}, fmt.Errorf("decompressing block %d: %w", height, err)
	}

	var blockData database.BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("decoding block %d: %w", height, err)
	}

	return blockData, nil
}

// Height returns the recorded chain height, zero for a new database.
func (l *LevelDB) Height() (database.Height, error) {
	value, err := l.db.Get(heightKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if len(value) != 8 {
		return 0, fmt.Errorf("corrupt chain height record of %d bytes", len(value))
	}

	return database.Height(binary.BigEndian.Uint64(value)), nil
}

// DropAfter removes the blocks above the specified height.
func (l *LevelDB) DropAfter(height database.Height) error {
	current, err := l.Height()
	if err != nil {
		return err
	}

	if height >= current {
		return nil
	}

	batch := new(leveldb.Batch)
	for h := height + 1; h <= current; h++ {
		batch.Delete(blockKey(h))
	}
	batch.Put(heightKey, encodeHeight(height))

	return l.db.Write(batch, nil)
}

// =============================================================================

func blockKey(height database.Height) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], uint64(height))
	return key
}

func encodeHeight(height database.Height) []byte {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(height))
	return value
}
