package sink

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrFinished is returned when a destination is used after Finish
var ErrFinished = errors.New("destination already finished")

// Destination is an append-only row stream for one output table.
// Finish flushes the stream and must be called exactly once; it returns
// the total number of rows written. Abort releases resources after a
// failed pass without committing anything further.
type Destination interface {
	Append(values []any) error
	Finish() (int64, error)
	Abort()
}

// Counts holds the row totals reported by each destination
type Counts struct {
	Points    int64
	Ways      int64
	Relations int64
	Members   int64
}

// Total returns the sum of all row counts
func (c Counts) Total() int64 {
	return c.Points + c.Ways + c.Relations + c.Members
}

// Set groups the four destinations written during a pass
type Set struct {
	Points    Destination
	Ways      Destination
	Relations Destination
	Members   Destination
}

func (s *Set) all() []Destination {
	return []Destination{s.Points, s.Ways, s.Relations, s.Members}
}

// Finish finalizes all destinations concurrently. It must only be called
// after the traversal has completed.
func (s *Set) Finish() (Counts, error) {
	var (
		g      errgroup.Group
		counts [4]int64
	)

	for i, d := range s.all() {
		i, d := i, d
		g.Go(func() error {
			n, err := d.Finish()
			if err != nil {
				return fmt.Errorf("failed to finish %s: %w", Tables()[i].Name, err)
			}
			counts[i] = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Counts{}, err
	}

	return Counts{
		Points:    counts[0],
		Ways:      counts[1],
		Relations: counts[2],
		Members:   counts[3],
	}, nil
}

// Abort tears down all destinations. Rows already written are not rolled back.
func (s *Set) Abort() {
	for _, d := range s.all() {
		if d != nil {
			d.Abort()
		}
	}
}

// Memory keeps appended rows in memory
type Memory struct {
	mu       sync.Mutex
	rows     [][]any
	finished bool
	aborted  bool
}

// NewMemory creates an empty in-memory destination
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(values []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished || m.aborted {
		return ErrFinished
	}
	row := make([]any, len(values))
	copy(row, values)
	m.rows = append(m.rows, row)
	return nil
}

func (m *Memory) Finish() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return 0, ErrFinished
	}
	m.finished = true
	return int64(len(m.rows)), nil
}

func (m *Memory) Abort() {
	m.mu.Lock()
	m.aborted = true
	m.mu.Unlock()
}

// Rows returns the appended rows
func (m *Memory) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows
}

// Aborted reports whether Abort was called
func (m *Memory) Aborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}

// NewMemorySet returns a Set of four in-memory destinations
func NewMemorySet() (*Set, [4]*Memory) {
	mems := [4]*Memory{NewMemory(), NewMemory(), NewMemory(), NewMemory()}
	return &Set{Points: mems[0], Ways: mems[1], Relations: mems[2], Members: mems[3]}, mems
}

// Discard counts rows without storing them
type Discard struct {
	count    int64
	finished bool
}

func (d *Discard) Append(values []any) error {
	if d.finished {
		return ErrFinished
	}
	d.count++
	return nil
}

func (d *Discard) Finish() (int64, error) {
	if d.finished {
		return 0, ErrFinished
	}
	d.finished = true
	return d.count, nil
}

func (d *Discard) Abort() {}

// NewDiscardSet returns a Set that only counts rows
func NewDiscardSet() *Set {
	return &Set{Points: &Discard{}, Ways: &Discard{}, Relations: &Discard{}, Members: &Discard{}}
}
