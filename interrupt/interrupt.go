// Package interrupt observes the DS3231 INT/SQW output. The line is open drain and active
// low: it is pulled low while an enabled alarm's flag is set and released when the flag is
// cleared.
package interrupt

// Watcher reports the state of the interrupt line.
type Watcher interface {
	Level() Level
	Close() error
}

type Level uint8

const (
	Released Level = iota
	Asserted
)

func (l Level) String() string {
	switch l {
	case Asserted:
		return "asserted"
	default:
		return "released"
	}
}

func (l Level) MarshalText() (text []byte, err error) {
	return []byte(l.String()), nil
}
