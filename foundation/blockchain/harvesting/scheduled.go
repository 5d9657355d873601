package harvesting

import (
	"fmt"
	"sync/atomic"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// ScheduledHarvesterTaskOptions represents the collaborators of a scheduled
// harvesting task.
type ScheduledHarvesterTaskOptions struct {
	HarvestingAllowed        func() bool
	LastBlockElementSupplier func() (database.BlockElement, error)
	TimeSupplier             func() database.Timestamp
	BlockConsumer            func(block database.Block, processingComplete func())
}

// ScheduledHarvesterTask runs one harvesting attempt each time it is
// invoked. No new block is produced while the previously harvested block is
// still being processed.
type ScheduledHarvesterTask struct {
	options   ScheduledHarvesterTaskOptions
	harvester *Harvester
	pending   atomic.Bool
}

// NewScheduledHarvesterTask constructs a task around the harvester.
func NewScheduledHarvesterTask(options ScheduledHarvesterTaskOptions, harvester *Harvester) *ScheduledHarvesterTask {
	return &ScheduledHarvesterTask{
		options:   options,
		harvester: harvester,
	}
}

// Harvest runs a harvesting attempt and hands any block produced to the
// block consumer.
func (t *ScheduledHarvesterTask) Harvest() error {
	if t.pending.Load() || !t.options.HarvestingAllowed() {
		return nil
	}

	last, err := t.options.LastBlockElementSupplier()
	if err != nil {
		return fmt.Errorf("loading last block: %w", err)
	}

	block, err := t.harvester.Harvest(last, t.options.TimeSupplier())
	if err != nil {
		return err
	}

	if block == nil {
		return nil
	}

	t.pending.Store(true)
	t.options.BlockConsumer(*block, func() {
		t.pending.Store(false)
	})

	return nil
}

// IsBlockPending reports whether a harvested block is still being processed.
func (t *ScheduledHarvesterTask) IsBlockPending() bool {
	return t.pending.Load()
}
