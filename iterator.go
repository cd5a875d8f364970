package resfs

import (
	"iter"
	"sync/atomic"
)

// DirIterator is a single-use sequence of the entry names in a directory.
//
// It can be consumed either with range over All or with Next/Name/Err. Once
// consumption started through one of them the iterator is spent: a second
// traversal yields nothing. Backend resources are released when the sequence
// is exhausted, when a range loop breaks early, or on Close. A DirIterator is
// not safe for concurrent use.
type DirIterator struct {
	dir     Path
	seq     iter.Seq2[string, error]
	claimed atomic.Bool

	next func() (string, error, bool)
	stop func()
	name string
	err  error
}

func newDirIterator(dir Path, seq iter.Seq2[string, error]) *DirIterator {
	return &DirIterator{dir: dir, seq: seq}
}

// Dir returns the directory being listed.
func (it *DirIterator) Dir() Path {
	return it.dir
}

func (it *DirIterator) claim() bool {
	return it.claimed.CompareAndSwap(false, true)
}

// All returns the entries as a range-over-func sequence. A listing failure is
// yielded once as ("", err) and ends the sequence.
//
//	for name, err := range it.All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(name)
//	}
func (it *DirIterator) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !it.claim() {
			return
		}
		for name, err := range it.seq {
			if err != nil {
				it.err = deviceError("list", it.dir, err)
				yield("", it.err)
				return
			}
			if !yield(name, nil) {
				return
			}
		}
	}
}

// Next advances to the next entry. It returns false when the listing is
// exhausted or failed; check Err afterwards.
func (it *DirIterator) Next() bool {
	if it.next == nil {
		if !it.claim() {
			return false
		}
		it.next, it.stop = iter.Pull2(it.seq)
	}

	name, err, ok := it.next()
	if !ok {
		it.stop()
		return false
	}
	if err != nil {
		it.err = deviceError("list", it.dir, err)
		it.stop()
		return false
	}
	it.name = name
	return true
}

// Name returns the entry Next advanced to.
func (it *DirIterator) Name() string {
	return it.name
}

// Path returns the address of the entry Next advanced to.
func (it *DirIterator) Path() Path {
	return it.dir.Join(it.name)
}

// Err returns the error that ended the listing, if any.
func (it *DirIterator) Err() error {
	return it.err
}

// Close releases backend resources held by an unfinished Next loop and marks
// the iterator as spent. It is safe to call more than once.
func (it *DirIterator) Close() error {
	if it.stop != nil {
		it.stop()
		return nil
	}
	it.claim()
	return nil
}

// Collect drains the iterator into a slice.
func (it *DirIterator) Collect() ([]string, error) {
	var names []string
	for name, err := range it.All() {
		if err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}
