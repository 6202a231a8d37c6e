// Package merge implements the two-pointer merge used both by the pairing
// stage (merging two in-memory batches into a level-0 run) and by the
// leveled merge stage (merging two run files into the next level).
package merge

import "github.com/entreya/extsort/internal/record"

// source is the minimal surface merge.Two needs from either a sorted batch
// or a runfile.Reader, so the same merge loop drives both stages.
type source[K any] interface {
	HasMore() (bool, error)
	Current() K
	Advance()
}

// sink is the minimal surface merge.Two needs from either an in-memory
// batch writer or a runfile.Writer.
type sink[K any] interface {
	Write(k K) error
}

// Two performs a two-way merge of left and right into out, repeatedly
// emitting the smaller of the two current records and advancing whichever
// side was emitted. When neither less(a,b) nor less(b,a) holds, left is
// emitted first — an arbitrary but deterministic tie-break.
func Two[K any](left, right source[K], out sink[K], less record.Less[K]) error {
	lok, err := left.HasMore()
	if err != nil {
		return err
	}
	rok, err := right.HasMore()
	if err != nil {
		return err
	}

	for lok && rok {
		l, r := left.Current(), right.Current()
		if less(r, l) {
			if err := out.Write(r); err != nil {
				return err
			}
			right.Advance()
			rok, err = right.HasMore()
		} else {
			if err := out.Write(l); err != nil {
				return err
			}
			left.Advance()
			lok, err = left.HasMore()
		}
		if err != nil {
			return err
		}
	}

	for lok {
		if err := out.Write(left.Current()); err != nil {
			return err
		}
		left.Advance()
		if lok, err = left.HasMore(); err != nil {
			return err
		}
	}
	for rok {
		if err := out.Write(right.Current()); err != nil {
			return err
		}
		right.Advance()
		if rok, err = right.HasMore(); err != nil {
			return err
		}
	}
	return nil
}
