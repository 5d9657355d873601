// Package difficulty maintains the window of recent block difficulties and
// calculates the difficulty of the next block from it.
package difficulty

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Set of errors returned by the history.
var (
	ErrOutOfOrder = errors.New("difficulty info is out of order")
	ErrNotFound   = errors.New("difficulty info not found")
	ErrEmpty      = errors.New("difficulty history is empty")
)

// Info represents the difficulty sample of one block.
type Info struct {
	Height     database.Height
	Timestamp  database.Timestamp
	Difficulty database.Difficulty
}

// NewInfo constructs the sample for a block header.
func NewInfo(header database.BlockHeader) Info {
	return Info{
		Height:     header.Height,
		Timestamp:  header.Timestamp,
		Difficulty: header.Difficulty,
	}
}

// =============================================================================

// History is a height ordered window of difficulty samples. At most capacity
// samples are kept besides the nemesis sample which is never evicted. A
// History is not safe for concurrent mutation; the cache hands out clones.
type History struct {
	capacity uint64
	anchor   *Info
	infos    []Info
}

// NewHistory constructs an empty history holding capacity samples.
func NewHistory(capacity uint64) *History {
	return &History{
		capacity: capacity,
	}
}

// NewHistoryFrom rebuilds a history from the samples returned by Range. The
// nemesis sample, when present, must come first and the remaining samples
// must be contiguous. Only the newest capacity samples are kept.
func NewHistoryFrom(capacity uint64, infos []Info) (*History, error) {
	h := NewHistory(capacity)

	if len(infos) > 0 && infos[0].Height == 1 {
		anchor := infos[0]
		h.anchor = &anchor
		infos = infos[1:]
	}

	for i, info := range infos {
		if info.Height <= 1 {
			return nil, fmt.Errorf("%w: nemesis sample at position %d", ErrOutOfOrder, i+1)
		}
		if i > 0 && info.Height != infos[i-1].Height+1 {
			return nil, fmt.Errorf("%w: got height %d, exp %d", ErrOutOfOrder, info.Height, infos[i-1].Height+1)
		}
	}

	if uint64(len(infos)) > capacity {
		infos = infos[uint64(len(infos))-capacity:]
	}
	h.infos = append([]Info(nil), infos...)

	return h, nil
}

// Capacity returns the number of samples the window holds.
func (h *History) Capacity() uint64 {
	return h.capacity
}

// Len returns the number of samples held including the nemesis sample.
func (h *History) Len() int {
	if h.anchor != nil {
		return len(h.infos) + 1
	}
	return len(h.infos)
}

// Insert appends the sample for the block following the newest sample. The
// first sample inserted into an empty history can have any height.
func (h *History) Insert(info Info) error {
	if newest, exists := h.newest(); exists && info.Height != newest.Height+1 {
		return fmt.Errorf("%w: got height %d, exp %d", ErrOutOfOrder, info.Height, newest.Height+1)
	}

	if info.Height == 1 {
		h.anchor = &info
		return nil
	}

	h.infos = append(h.infos, info)
	if uint64(len(h.infos)) > h.capacity {
		h.infos = append(h.infos[:0:0], h.infos[uint64(len(h.infos))-h.capacity:]...)
	}

	return nil
}

// Prepend adds the sample for the block preceding the oldest sample if the
// window has room for it. It is used to refill the window after blocks are
// rolled back.
func (h *History) Prepend(info Info) error {
	if info.Height == 1 {
		if h.anchor != nil {
			return nil
		}
		if len(h.infos) > 0 && h.infos[0].Height != 2 {
			return fmt.Errorf("%w: nemesis sample leaves a gap before height %d", ErrOutOfOrder, h.infos[0].Height)
		}
		h.anchor = &info
		return nil
	}

	if uint64(len(h.infos)) >= h.capacity {
		return nil
	}

	if len(h.infos) > 0 && info.Height+1 != h.infos[0].Height {
		return fmt.Errorf("%w: got height %d, exp %d", ErrOutOfOrder, info.Height, h.infos[0].Height-1)
	}

	h.infos = append([]Info{info}, h.infos...)
	return nil
}

// RemoveNewest removes the newest sample.
func (h *History) RemoveNewest() (Info, error) {
	if len(h.infos) > 0 {
		info := h.infos[len(h.infos)-1]
		h.infos = h.infos[:len(h.infos)-1]
		return info, nil
	}

	if h.anchor != nil {
		info := *h.anchor
		h.anchor = nil
		return info, nil
	}

	return Info{}, ErrEmpty
}

// Oldest returns the oldest sample in the window, ignoring the nemesis
// sample when other samples exist.
func (h *History) Oldest() (Info, bool) {
	if len(h.infos) > 0 {
		return h.infos[0], true
	}
	if h.anchor != nil {
		return *h.anchor, true
	}
	return Info{}, false
}

// Newest returns the newest sample.
func (h *History) Newest() (Info, bool) {
	return h.newest()
}

// Contains reports whether a sample exists for the height.
func (h *History) Contains(height database.Height) bool {
	_, exists := h.find(height)
	return exists
}

// Range returns all the samples, oldest first.
func (h *History) Range() []Info {
	infos := make([]Info, 0, h.Len())
	if h.anchor != nil {
		infos = append(infos, *h.anchor)
	}

	return append(infos, h.infos...)
}

// Infos returns up to count samples ending at the specified height, oldest
// first.
func (h *History) Infos(height database.Height, count uint64) ([]Info, error) {
	if !h.Contains(height) {
		return nil, fmt.Errorf("%w: height %d", ErrNotFound, height)
	}

	var first database.Height = 1
	if uint64(height) > count {
		first = height - database.Height(count) + 1
	}

	var infos []Info
	for _, info := range h.Range() {
		if info.Height >= first && info.Height <= height {
			infos = append(infos, info)
		}
	}

	return infos, nil
}

// Clone returns a deep copy of the history.
func (h *History) Clone() *History {
	clone := History{
		capacity: h.capacity,
		infos:    append([]Info(nil), h.infos...),
	}

	if h.anchor != nil {
		anchor := *h.anchor
		clone.anchor = &anchor
	}

	return &clone
}

// =============================================================================

func (h *History) newest() (Info, bool) {
	if len(h.infos) > 0 {
		return h.infos[len(h.infos)-1], true
	}
	if h.anchor != nil {
		return *h.anchor, true
	}
	return Info{}, false
}

func (h *History) find(height database.Height) (Info, bool) {
	if h.anchor != nil && h.anchor.Height == height {
		return *h.anchor, true
	}

	i := sort.Search(len(h.infos), func(i int) bool {
		return h.infos[i].Height >= height
	})
	if i < len(h.infos) && h.infos[i].Height == height {
		return h.infos[i], true
	}

	return Info{}, false
}
