// Package fsm codecs the parameter pack of $fsm cells.
package fsm

import (
	"github.com/pkg/errors"

	"gosynth/internal/rtlil"
)

// Data is the unpacked form of a $fsm cell's parameters: the state table,
// the transition table and the control port widths.
type Data struct {
	StateBits    int
	ResetState   int
	StateTable   []rtlil.Const
	TransTable   []Transition
	CtrlInWidth  int
	CtrlOutWidth int
}

// Transition is one row of the transition table.
type Transition struct {
	StateIn  int
	CtrlIn   rtlil.Const
	StateOut int
	CtrlOut  rtlil.Const
}

// CopyFromCell unpacks the cell parameters.
func (d *Data) CopyFromCell(cell *rtlil.Cell) error {
	d.StateBits = cell.Parameters["\\STATE_BITS"].AsInt()
	d.ResetState = cell.Parameters["\\STATE_RST"].AsInt()
	d.CtrlInWidth = cell.Parameters["\\CTRL_IN_WIDTH"].AsInt()
	d.CtrlOutWidth = cell.Parameters["\\CTRL_OUT_WIDTH"].AsInt()

	stateNum := cell.Parameters["\\STATE_NUM"].AsInt()
	stateTable := cell.Parameters["\\STATE_TABLE"]
	if len(stateTable.Bits) != stateNum*d.StateBits {
		return errors.Errorf("fsm: state table of cell %s has %d bits, want %d",
			cell.Name, len(stateTable.Bits), stateNum*d.StateBits)
	}
	d.StateTable = nil
	for i := 0; i < stateNum; i++ {
		bits := append([]rtlil.State(nil), stateTable.Bits[i*d.StateBits:(i+1)*d.StateBits]...)
		d.StateTable = append(d.StateTable, rtlil.NewConstBits(bits))
	}

	transNum := cell.Parameters["\\TRANS_NUM"].AsInt()
	transTable := cell.Parameters["\\TRANS_TABLE"]
	rowWidth := 32 + d.CtrlInWidth + 32 + d.CtrlOutWidth
	if len(transTable.Bits) != transNum*rowWidth {
		return errors.Errorf("fsm: transition table of cell %s has %d bits, want %d",
			cell.Name, len(transTable.Bits), transNum*rowWidth)
	}
	d.TransTable = nil
	for i := 0; i < transNum; i++ {
		row := transTable.Bits[i*rowWidth : (i+1)*rowWidth]
		tr := Transition{
			StateIn: rtlil.NewConstBits(append([]rtlil.State(nil), row[:32]...)).AsInt(),
			CtrlIn:  rtlil.NewConstBits(append([]rtlil.State(nil), row[32:32+d.CtrlInWidth]...)),
			StateOut: rtlil.NewConstBits(append([]rtlil.State(nil),
				row[32+d.CtrlInWidth:64+d.CtrlInWidth]...)).AsInt(),
			CtrlOut: rtlil.NewConstBits(append([]rtlil.State(nil), row[64+d.CtrlInWidth:]...)),
		}
		d.TransTable = append(d.TransTable, tr)
	}
	return nil
}

// CopyToCell repacks the parameters into the cell.
func (d *Data) CopyToCell(cell *rtlil.Cell) {
	cell.Parameters["\\STATE_BITS"] = rtlil.NewConstInt(d.StateBits, 32)
	cell.Parameters["\\STATE_NUM"] = rtlil.NewConstInt(len(d.StateTable), 32)
	cell.Parameters["\\STATE_RST"] = rtlil.NewConstInt(d.ResetState, 32)
	cell.Parameters["\\CTRL_IN_WIDTH"] = rtlil.NewConstInt(d.CtrlInWidth, 32)
	cell.Parameters["\\CTRL_OUT_WIDTH"] = rtlil.NewConstInt(d.CtrlOutWidth, 32)

	var stateBits []rtlil.State
	for _, code := range d.StateTable {
		stateBits = append(stateBits, code.Bits...)
	}
	cell.Parameters["\\STATE_TABLE"] = rtlil.NewConstBits(stateBits)

	cell.Parameters["\\TRANS_NUM"] = rtlil.NewConstInt(len(d.TransTable), 32)
	var transBits []rtlil.State
	for _, tr := range d.TransTable {
		transBits = append(transBits, rtlil.NewConstInt(tr.StateIn, 32).Bits...)
		transBits = append(transBits, fitBits(tr.CtrlIn, d.CtrlInWidth)...)
		transBits = append(transBits, rtlil.NewConstInt(tr.StateOut, 32).Bits...)
		transBits = append(transBits, fitBits(tr.CtrlOut, d.CtrlOutWidth)...)
	}
	cell.Parameters["\\TRANS_TABLE"] = rtlil.NewConstBits(transBits)
}

func fitBits(c rtlil.Const, width int) []rtlil.State {
	bits := append([]rtlil.State(nil), c.Bits...)
	if len(bits) > width {
		bits = bits[:width]
	}
	for len(bits) < width {
		bits = append(bits, rtlil.Sa)
	}
	return bits
}
