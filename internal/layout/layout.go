// Package layout assigns display columns to overlapping scheduled blocks.
package layout

import (
	"sort"
	"time"
)

// ColumnCount is the fixed display budget. When every column conflicts the
// block is forced into column 0 and the overlap is accepted visually.
const ColumnCount = 3

type Block struct {
	ID    string
	Start time.Time
	End   time.Time
}

func (b Block) overlaps(other Block) bool {
	return b.Start.Before(other.End) && other.Start.Before(b.End)
}

// Assign maps each block id to a column in [0, ColumnCount). Blocks are
// considered in start order; each takes the first column none of whose
// members overlap it.
func Assign(blocks []Block) map[string]int {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	columns := make([][]Block, ColumnCount)
	out := make(map[string]int, len(blocks))
	for _, b := range sorted {
		col := 0
		for c := 0; c < ColumnCount; c++ {
			if !conflicts(columns[c], b) {
				col = c
				break
			}
			if c == ColumnCount-1 {
				col = 0
			}
		}
		columns[col] = append(columns[col], b)
		out[b.ID] = col
	}
	return out
}

func conflicts(column []Block, b Block) bool {
	for _, member := range column {
		if member.overlaps(b) {
			return true
		}
	}
	return false
}
