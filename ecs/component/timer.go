package component

// ArenaTimer tracks match time. With CountDown set, Remaining falls from
// Seconds to zero and Expired latches.
type ArenaTimer struct {
	Enabled   bool
	CountDown bool
	Seconds   float64
	Elapsed   float64
	Expired   bool
}

func (t ArenaTimer) Remaining() float64 {
	if !t.CountDown {
		return 0
	}
	if r := t.Seconds - t.Elapsed; r > 0 {
		return r
	}
	return 0
}

var ArenaTimerComponent = NewComponent[ArenaTimer]()
