// Package layout arranges visible browser windows in a grid across the
// virtual desktop so a batch of concurrent profiles can be watched at a
// glance. Rows are allowed to run past the bottom of the screen at high
// concurrency; overlapping windows are preferable to failing the launch.
package layout

import "sync"

// Position is a window's top-left corner on the virtual desktop.
type Position struct {
	X int
	Y int
}

// Size is a window's width and height in pixels.
type Size struct {
	Width  int
	Height int
}

// Config describes the screen and window geometry for grid placement.
type Config struct {
	ScreenWidth  int
	ScreenHeight int
	WindowWidth  int
	WindowHeight int
	Padding      int
	OriginX      int
	OriginY      int
}

// Columns returns how many windows fit in one row, never less than one.
func (c Config) Columns() int {
	cols := (c.ScreenWidth - c.OriginX) / (c.WindowWidth + c.Padding)
	if cols < 1 {
		return 1
	}
	return cols
}

// PositionForSlot maps a slot index to its grid cell, filling rows
// left-to-right, top-to-bottom. Deterministic and total over slot >= 0.
func PositionForSlot(slot int, cfg Config) Position {
	cols := cfg.Columns()
	row := slot / cols
	col := slot % cols
	return Position{
		X: cfg.OriginX + col*(cfg.WindowWidth+cfg.Padding),
		Y: cfg.OriginY + row*(cfg.WindowHeight+cfg.Padding),
	}
}

// Positioner hands out grid slots round-robin over a fixed number of
// visible positions, one per concurrency slot.
type Positioner struct {
	cfg      Config
	maxSlots int

	mu     sync.Mutex
	cursor int
}

// New creates a Positioner cycling through maxSlots grid positions.
func New(cfg Config, maxSlots int) *Positioner {
	if maxSlots <= 0 {
		maxSlots = 1
	}
	return &Positioner{cfg: cfg, maxSlots: maxSlots}
}

// Next returns the position for the current cursor slot and advances the
// cursor modulo the slot count.
func (p *Positioner) Next() (Position, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot := p.cursor
	p.cursor = (p.cursor + 1) % p.maxSlots
	return PositionForSlot(slot, p.cfg), slot
}

// ForSlot returns the position for a specific slot without moving the cursor.
func (p *Positioner) ForSlot(slot int) Position {
	return PositionForSlot(slot, p.cfg)
}

// Reset rewinds the cursor to the first slot.
func (p *Positioner) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
}
