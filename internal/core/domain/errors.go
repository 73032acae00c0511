package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for entities that do not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict marks writes that collide with an existing entity, such as
// a hardware profile reusing another profile's name.
var ErrConflict = errors.New("already exists")

// FormatError reports a terrain tile whose byte size matches neither
// supported resolution.
type FormatError struct {
	File string
	Size int64
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("terrain tile %s: unsupported size %d bytes", e.File, e.Size)
}

// NoDataError reports that no terrain tile intersects the requested bounds.
type NoDataError struct {
	Bounds Bounds
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no terrain data for lat[%.4f,%.4f] lon[%.4f,%.4f]",
		e.Bounds.MinLat, e.Bounds.MaxLat, e.Bounds.MinLon, e.Bounds.MaxLon)
}

// DegenerateInputError reports a grid whose extent collapsed to fewer than
// two samples on either axis.
type DegenerateInputError struct {
	Rows int
	Cols int
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate grid extent %dx%d", e.Rows, e.Cols)
}

// ObserverOffGridError reports a node whose snapped cell falls outside the
// elevation grid. This usually means node positions and terrain bounds
// disagree, so the whole computation request is rejected.
type ObserverOffGridError struct {
	Node string
	Row  int
	Col  int
	Rows int
	Cols int
}

func (e *ObserverOffGridError) Error() string {
	return fmt.Sprintf("node %q snaps to cell (%d,%d) outside %dx%d grid",
		e.Node, e.Row, e.Col, e.Rows, e.Cols)
}
