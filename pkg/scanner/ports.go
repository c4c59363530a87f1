package scanner

import (
	"iter"
)

// PortRange returns an iterator over ports in [start, end], ascending
// This enables streaming dispatch without allocating the full port list
func PortRange(start, end int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for port := start; port <= end; port++ {
			if !yield(port) {
				return
			}
		}
	}
}
