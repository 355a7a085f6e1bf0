package hashtrie

import (
	"errors"
	"fmt"
)

var (
	// ErrReadOnly is returned when a mutation is attempted on a trie
	// reconstructed from its persisted encoding.
	ErrReadOnly = errors.New("trie is read-only")

	// ErrSystemTimeRegression is returned by LiveTable when an event's
	// system time is earlier than the previous event's.
	ErrSystemTimeRegression = errors.New("system time went backwards")

	ErrGenerationNotFound = errors.New("generation not found")
	ErrGenerationExists   = errors.New("generation already exists")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// PageError reports a failure to load a leaf page of a persisted trie.
type PageError struct {
	Trie string
	Page int
	Err  error
}

func (e *PageError) Unwrap() error {
	return e.Err
}

func (e *PageError) Error() string {
	if e.Trie == "" {
		return fmt.Sprintf("page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("%s: page %d: %v", e.Trie, e.Page, e.Err)
}
