package pipeline

// State is either Settled or Pending.
type State interface {
	Columns() Columns
	isState()
}

// Settled columns match what the server last told us (or what it confirmed).
type Settled struct {
	Server Columns
}

// Pending columns carry optimistic moves that have not been confirmed yet.
// Original is the settled state the first unresolved move was applied on.
type Pending struct {
	Optimistic Columns
	Original   Columns
	InFlight   int
}

func (s Settled) Columns() Columns { return s.Server }
func (p Pending) Columns() Columns { return p.Optimistic }

func (Settled) isState() {}
func (Pending) isState() {}
