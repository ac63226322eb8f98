package orchestrator

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownChunk = errors.New("unknown chunk index")

// Selection describes which chunks a job should cover. At most one of
// Single, Range and Start is expected; Count limits Start and the default
// selection.
type Selection struct {
	Single int
	Range  [2]int
	Start  int
	Count  int
	Force  bool
}

// SelectTargets resolves sel against the available chunk indices.
//
//   - Single: exactly that chunk.
//   - Range: every available chunk in [Range[0], Range[1]].
//   - Start: available chunks from Start on, the first Count of them.
//   - otherwise: chunks not yet completed (all of them when Force is set),
//     the first Count of them.
//
// Completed chunks picked by Single, Range or Start are still skipped by Run
// unless the job is forced.
func SelectTargets(all []int, sel Selection, isCompleted func(int) bool) ([]int, error) {
	available := append([]int(nil), all...)
	sort.Ints(available)
	has := make(map[int]bool, len(available))
	for _, i := range available {
		has[i] = true
	}

	var out []int
	switch {
	case sel.Single > 0:
		if !has[sel.Single] {
			return nil, fmt.Errorf("%w: %d", ErrUnknownChunk, sel.Single)
		}
		return []int{sel.Single}, nil

	case sel.Range[0] > 0 || sel.Range[1] > 0:
		lo, hi := sel.Range[0], sel.Range[1]
		if lo <= 0 || hi < lo {
			return nil, fmt.Errorf("invalid range %d-%d", lo, hi)
		}
		for _, i := range available {
			if i >= lo && i <= hi {
				out = append(out, i)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: none in range %d-%d", ErrUnknownChunk, lo, hi)
		}
		return out, nil

	case sel.Start > 0:
		for _, i := range available {
			if i >= sel.Start {
				out = append(out, i)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: none from %d", ErrUnknownChunk, sel.Start)
		}

	default:
		for _, i := range available {
			if sel.Force || isCompleted == nil || !isCompleted(i) {
				out = append(out, i)
			}
		}
	}

	if sel.Count > 0 && len(out) > sel.Count {
		out = out[:sel.Count]
	}
	return out, nil
}
