package transfer

import (
	"sync/atomic"

	"github.com/fossilgo/fossilgo/internal/errs"
)

// LoadShedder gates entry into NEGOTIATE by a configurable concurrent-
// session ceiling, grounded in original_source/src/loadctrl.c's
// load-average gate but simplified to an in-process counter since an
// OS load average has no equivalent here.
type LoadShedder struct {
	max     int64
	current atomic.Int64
}

// NewLoadShedder builds a shedder admitting at most max concurrent
// sessions; max <= 0 disables shedding.
func NewLoadShedder(max int) *LoadShedder {
	return &LoadShedder{max: int64(max)}
}

// Admit reserves a session slot, returning a release func to call once
// the session ends. Returns a Busy FossilError if the ceiling is
// already reached.
func (l *LoadShedder) Admit() (release func(), err error) {
	if l.max <= 0 {
		return func() {}, nil
	}
	if l.current.Add(1) > l.max {
		l.current.Add(-1)
		return nil, errs.Busy("sync session ceiling reached")
	}
	return func() { l.current.Add(-1) }, nil
}

// InFlight reports the number of sessions currently admitted.
func (l *LoadShedder) InFlight() int64 { return l.current.Load() }
