// Package storage provides the block storage implementations used by the
// database package.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Storage interface.
type Disk struct {
	dbPath string
}

// NewDisk constructs a Disk value for use.
func NewDisk(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified database block and stores it on disk in a
// file labeled with the block height.
func (d *Disk) Write(blockData database.BlockData) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(blockData, "", "  ")
	if err != nil {
		return err
	}

	// Create a new file for this block and name it based on the block height.
	f, err := os.OpenFile(d.getPath(blockData.Header.Height), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	// Write the new block to disk.
	if _, err := f.Write(data); err != nil {
		return err
	}

	return f.Sync()
}

// Read searches the blockchain on disk to locate and return the
// contents of the specified block by height.
func (d *Disk) Read(height database.Height) (database.BlockData, error) {

	// Open the block file for the specified height.
	f, err := os.OpenFile(d.getPath(height), os.O_RDONLY, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return database.BlockData{}, fmt.Errorf("%w: height %d", database.ErrNotFound, height)
		}
		return database.BlockData{}, err
	}
	defer f.Close()

	// Decode the contents of the block.
	var blockData database.BlockData
	if err := json.NewDecoder(f).Decode(&blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("decoding block %d: %w", height, err)
	}

	return blockData, nil
}

// Height walks the block files starting with height 1 and returns the last
// height with a file on disk.
func (d *Disk) Height() (database.Height, error) {
	var height database.Height
	for {
		_, err := os.Stat(d.getPath(height + 1))
		if errors.Is(err, fs.ErrNotExist) {
			return height, nil
		}
		if err != nil {
			return 0, err
		}
		height++
	}
}

// DropAfter removes the block files above the specified height.
func (d *Disk) DropAfter(height database.Height) error {
	for h := height + 1; ; h++ {
		err := os.Remove(d.getPath(h))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(height database.Height) string {
	name := strconv.FormatUint(uint64(height), 10)
	return path.Join(d.dbPath, fmt.Sprintf("%s.json", name))
}
