package chain

import (
	"errors"

	"github.com/cwbudde/algo-pluginhost/host/plugin"
	"github.com/cwbudde/algo-pluginhost/host/state"
)

// RestoredEntry describes a record that was loaded by Import.
type RestoredEntry struct {
	// Index is the entry's position in the chain after the import.
	Index int
	// PersistedIndex is the position stored in the record.
	PersistedIndex int
	Descriptor     plugin.Descriptor
	// StateErr is set when the plugin rejected its saved state.
	StateErr error
}

// SkippedRecord describes a record that could not be loaded.
type SkippedRecord struct {
	PersistedIndex int
	Descriptor     plugin.Descriptor
	Err            error
}

// ImportReport lists what Import restored and skipped.
type ImportReport struct {
	Restored []RestoredEntry
	Skipped  []SkippedRecord
}

// Drifted returns the restored entries whose position differs from the
// persisted one. Drift happens after a skipped record and is reported,
// not corrected.
func (r ImportReport) Drifted() []RestoredEntry {
	var out []RestoredEntry

	for _, e := range r.Restored {
		if e.Index != e.PersistedIndex {
			out = append(out, e)
		}
	}

	return out
}

// Snapshot captures every entry in chain order: position, bypass flag,
// descriptor and, for plugins implementing plugin.StateSaver, their state.
func (c *Chain) Snapshot() []state.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.snap.Load().entries
	records := make([]state.Record, 0, len(entries))

	for i, e := range entries {
		r := state.Record{
			Index:      i,
			Bypassed:   e.bypassed.Load(),
			Descriptor: e.descriptor,
		}

		if s, ok := e.plugin.(plugin.StateSaver); ok {
			blob, err := s.SaveState()
			if err != nil {
				c.logger.Warn("plugin state not saved", "plugin", e.descriptor.Name, "index", i, "error", err)
			} else if len(blob) > 0 {
				r.State = blob
			}
		}

		records = append(records, r)
	}

	return records
}

// Export serialises the chain into a state container.
func (c *Chain) Export() ([]byte, error) {
	return state.Encode(c.Snapshot())
}

// Import replaces the chain with the one stored in data. The chain is
// cleared first; a malformed container leaves it empty and returns the
// decoding error. Records whose plugin cannot be loaded are skipped and the
// rest are still restored.
func (c *Chain) Import(data []byte) (ImportReport, error) {
	c.Clear()

	records, err := state.Decode(data)
	if err != nil {
		c.logger.Warn("chain state not restored", "error", err)

		return ImportReport{}, err
	}

	return c.Restore(records), nil
}

// Restore appends records in order: each descriptor is instantiated, its
// bypass flag applied to the new entry and its state handed to the plugin.
// Both happen before the entry becomes visible to Process.
func (c *Chain) Restore(records []state.Record) ImportReport {
	var report ImportReport

	for _, r := range records {
		restored, err := c.restore(r)
		if err != nil {
			var ierr *InstantiationError
			if errors.As(err, &ierr) {
				c.listeners.instantiationFailed(ierr)
			}

			report.Skipped = append(report.Skipped, SkippedRecord{
				PersistedIndex: r.Index,
				Descriptor:     r.Descriptor,
				Err:            err,
			})

			continue
		}

		c.listeners.chainChanged()

		if r.Bypassed {
			c.listeners.bypassChanged(restored.Index, true)
		}

		report.Restored = append(report.Restored, restored)
	}

	if drifted := report.Drifted(); len(drifted) > 0 {
		c.logger.Info("chain restored with shifted positions",
			"restored", len(report.Restored), "skipped", len(report.Skipped), "shifted", len(drifted))
	}

	return report
}

func (c *Chain) restore(r state.Record) (RestoredEntry, error) {
	var stateErr error

	index, err := c.append(r.Descriptor, func(e *entry) {
		e.bypassed.Store(r.Bypassed)

		if !r.HasState() {
			return
		}

		if s, ok := e.plugin.(plugin.StateSaver); ok {
			stateErr = s.RestoreState(r.State)
		}
	})
	if err != nil {
		return RestoredEntry{}, err
	}

	if stateErr != nil {
		c.logger.Warn("plugin state rejected",
			"plugin", r.Descriptor.Name, "index", index, "error", stateErr)
	}

	return RestoredEntry{
		Index:          index,
		PersistedIndex: r.Index,
		Descriptor:     r.Descriptor,
		StateErr:       stateErr,
	}, nil
}
