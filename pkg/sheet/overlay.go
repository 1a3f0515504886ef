package sheet

import "sync"

// Changes is a batch of computed cells keyed sheet → row → col.
type Changes map[string]map[int]map[int]CellSnapshot

// Add records snap at pos, creating intermediate maps as needed.
func (c Changes) Add(pos CellPosition, snap CellSnapshot) {
	rows, ok := c[pos.Sheet]
	if !ok {
		rows = make(map[int]map[int]CellSnapshot)
		c[pos.Sheet] = rows
	}
	cols, ok := rows[pos.Row]
	if !ok {
		cols = make(map[int]CellSnapshot)
		rows[pos.Row] = cols
	}
	cols[pos.Col] = snap
}

// Overlay holds values computed earlier in a recalculation pass that the
// host has not committed yet. Writers are expected to be sequenced by the
// host; the lock only keeps concurrent readers safe.
type Overlay struct {
	mu    sync.RWMutex
	cells Changes
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{cells: make(Changes)}
}

// Merge copies every cell in changes into the overlay. An incoming cell
// replaces any existing snapshot at the same position as a whole; fields
// are never merged individually.
func (o *Overlay) Merge(changes Changes) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for sheetName, rows := range changes {
		for row, cols := range rows {
			for col, snap := range cols {
				o.cells.Add(CellPosition{Sheet: sheetName, Row: row, Col: col}, snap)
			}
		}
	}
}

// Get returns the overlay entry at pos.
func (o *Overlay) Get(pos CellPosition) (CellSnapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	c, ok := o.cells[pos.Sheet][pos.Row][pos.Col]
	return c, ok
}

// Len returns the number of cells held.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n := 0
	for _, rows := range o.cells {
		for _, cols := range rows {
			n += len(cols)
		}
	}
	return n
}

// Clear discards every entry.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cells = make(Changes)
}
