//go:build noics

package conference

import "log/slog"

const icsEnabled = false

// MarshalICS без поддержки iCalendar всегда возвращает ErrICSUnavailable
func (i *Info) MarshalICS(cancel bool, sequence int) (string, error) {
	return "", ErrICSUnavailable
}

// FromICS без поддержки iCalendar всегда возвращает ErrICSUnavailable
func FromICS(data []byte) (*Info, error) {
	slog.Warn("conference: iCalendar support is not built in, payload dropped",
		slog.Int("size", len(data)))
	return nil, ErrICSUnavailable
}

func logICSError(i *Info, err error) {
	slog.Warn("conference: ICS is not available, cannot serialize conference",
		slog.String("conference", i.logRef()))
}
