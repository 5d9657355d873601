package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
)

// Set of errors returned when loading persisted state.
var (
	ErrNoState      = errors.New("no persisted state")
	ErrStateCorrupt = errors.New("persisted state is corrupt")
)

// Names of the persisted state directories and files.
const (
	stateDir       = "state"
	stateTmpDir    = "state.tmp"
	accountsFile   = "accounts.dat"
	difficultyFile = "difficulty.dat"
	hashesFile     = "hashes.dat"
	supplementFile = "supplemental.dat"
)

// Supplemental represents chain values saved beside the cache state.
type Supplemental struct {
	ScoreHigh uint64
	ScoreLow  uint64
}

type supplementalRecord struct {
	Height           database.Height
	ImportanceHeight database.ImportanceHeight
	ScoreHigh        uint64
	ScoreLow         uint64
}

type hashRecord struct {
	Hash     database.Hash
	Deadline database.Timestamp
}

// =============================================================================

// HasState reports whether persisted state exists under the data directory.
func HasState(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, stateDir))
	return err == nil
}

// Save writes the generation of the view to the state directory under the
// data directory. Files are written to a staging directory that replaces the
// state directory once every file is written.
func Save(dataDir string, view View, supplemental Supplemental) error {
	tmp := filepath.Join(dataDir, stateTmpDir)
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}

	if err := os.MkdirAll(tmp, 0755); err != nil {
		return err
	}

	gen := view.gen

	accounts := make([]accountRecord, 0, len(gen.accounts))
	for _, key := range view.Accounts().Keys() {
		accounts = append(accounts, newAccountRecord(*gen.accounts[key]))
	}

	hashes := make([]hashRecord, 0, len(gen.hashes))
	for hash, deadline := range gen.hashes {
		hashes = append(hashes, hashRecord{Hash: hash, Deadline: deadline})
	}
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].Hash.Cmp(hashes[j].Hash) < 0
	})

	sup := supplementalRecord{
		Height:           gen.height,
		ImportanceHeight: gen.importanceHeight,
		ScoreHigh:        supplemental.ScoreHigh,
		ScoreLow:         supplemental.ScoreLow,
	}

	files := []struct {
		name  string
		value any
	}{
		{name: accountsFile, value: accounts},
		{name: difficultyFile, value: gen.history.Range()},
		{name: hashesFile, value: hashes},
		{name: supplementFile, value: sup},
	}

	for _, f := range files {
		if err := writeFile(filepath.Join(tmp, f.name), f.value); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}

	dir := filepath.Join(dataDir, stateDir)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}

	return os.Rename(tmp, dir)
}

// Load reads the persisted state under the data directory into a new cache.
// A missing state directory returns ErrNoState. A missing or unreadable
// state file returns ErrStateCorrupt.
func Load(dataDir string, cfg genesis.Config) (*Cache, Supplemental, error) {
	dir := filepath.Join(dataDir, stateDir)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Supplemental{}, ErrNoState
		}
		return nil, Supplemental{}, err
	}

	var accounts []accountRecord
	if err := readFile(filepath.Join(dir, accountsFile), &accounts); err != nil {
		return nil, Supplemental{}, err
	}

	var infos []difficulty.Info
	if err := readFile(filepath.Join(dir, difficultyFile), &infos); err != nil {
		return nil, Supplemental{}, err
	}

	var hashes []hashRecord
	if err := readFile(filepath.Join(dir, hashesFile), &hashes); err != nil {
		return nil, Supplemental{}, err
	}

	var sup supplementalRecord
	if err := readFile(filepath.Join(dir, supplementFile), &sup); err != nil {
		return nil, Supplemental{}, err
	}

	c := New(cfg)
	gen := c.gen
	gen.height = sup.Height
	gen.importanceHeight = sup.ImportanceHeight

	for _, record := range accounts {
		account := record.toAccountState()
		gen.accounts[account.PublicKey] = &account
	}

	history, err := difficulty.NewHistoryFrom(cfg.MaxDifficultyBlocks, infos)
	if err != nil {
		return nil, Supplemental{}, fmt.Errorf("%w: %s: %s", ErrStateCorrupt, difficultyFile, err)
	}
	gen.history = history

	for _, record := range hashes {
		gen.hashes[record.Hash] = record.Deadline
	}

	supplemental := Supplemental{
		ScoreHigh: sup.ScoreHigh,
		ScoreLow:  sup.ScoreLow,
	}

	return c, supplemental, nil
}

// =============================================================================

func writeFile(path string, value any) error {
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(snappy.Encode(nil, data)); err != nil {
		return err
	}

	return f.Sync()
}

func readFile(path string, value any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStateCorrupt, err)
	}

	data, err := snappy.Decode(nil, content)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrStateCorrupt, filepath.Base(path), err)
	}

	if err := rlp.DecodeBytes(data, value); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrStateCorrupt, filepath.Base(path), err)
	}

	return nil
}
