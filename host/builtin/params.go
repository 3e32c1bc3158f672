package builtin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

const stateVersion = 1

var (
	// ErrUnknownParam is returned for a parameter name the plugin does not have.
	ErrUnknownParam = errors.New("builtin: unknown parameter")
	// ErrBadState is returned by RestoreState for a blob it cannot read.
	ErrBadState = errors.New("builtin: bad plugin state")
)

// Param describes one automatable value.
type Param struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// param is a Param whose value can be read by the audio goroutine while a
// control goroutine writes it.
type param struct {
	Param

	bits atomic.Uint64
}

func (p *param) load() float64 {
	return math.Float64frombits(p.bits.Load())
}

func (p *param) store(v float64) {
	p.bits.Store(math.Float64bits(min(max(v, p.Min), p.Max)))
}

// params is a fixed, ordered parameter set. The set itself never changes
// after construction; only values do.
type params struct {
	list []*param
}

func newParams(defs ...Param) params {
	ps := params{list: make([]*param, len(defs))}
	for i, d := range defs {
		p := &param{Param: d}
		p.store(d.Default)
		ps.list[i] = p
	}

	return ps
}

func (ps params) lookup(name string) *param {
	for _, p := range ps.list {
		if p.Name == name {
			return p
		}
	}

	return nil
}

// Params lists the parameters in state order.
func (ps params) Params() []Param {
	out := make([]Param, len(ps.list))
	for i, p := range ps.list {
		out[i] = p.Param
	}

	return out
}

// SetParam sets a parameter, clamped to its range.
func (ps params) SetParam(name string, v float64) error {
	p := ps.lookup(name)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}

	if math.IsNaN(v) {
		return fmt.Errorf("builtin: parameter %q: not a number", name)
	}

	p.store(v)

	return nil
}

// ParamValue returns the current value of a parameter.
func (ps params) ParamValue(name string) (float64, bool) {
	p := ps.lookup(name)
	if p == nil {
		return 0, false
	}

	return p.load(), true
}

// SaveState encodes the parameter values as
// version(1) | count(uint16 LE) | count x float64 LE.
// A plugin without parameters has no state.
func (ps params) SaveState() ([]byte, error) {
	if len(ps.list) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, 3+8*len(ps.list))
	out = append(out, stateVersion)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(ps.list)))

	for _, p := range ps.list {
		out = binary.LittleEndian.AppendUint64(out, p.bits.Load())
	}

	return out, nil
}

// RestoreState applies a blob written by SaveState. Nothing is changed when
// the blob is rejected.
func (ps params) RestoreState(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if data[0] != stateVersion {
		return fmt.Errorf("%w: version %d", ErrBadState, data[0])
	}

	if len(data) < 3 {
		return fmt.Errorf("%w: truncated header", ErrBadState)
	}

	count := int(binary.LittleEndian.Uint16(data[1:3]))
	if count != len(ps.list) {
		return fmt.Errorf("%w: %d values, want %d", ErrBadState, count, len(ps.list))
	}

	body := data[3:]
	if len(body) != 8*count {
		return fmt.Errorf("%w: %d value bytes, want %d", ErrBadState, len(body), 8*count)
	}

	values := make([]float64, count)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[8*i:]))
		if math.IsNaN(values[i]) {
			return fmt.Errorf("%w: %s is not a number", ErrBadState, ps.list[i].Name)
		}
	}

	for i, v := range values {
		ps.list[i].store(v)
	}

	return nil
}
