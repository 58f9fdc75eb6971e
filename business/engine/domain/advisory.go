package domain

// AdvisoryKind is the stance an external advisor takes on the next cycle.
type AdvisoryKind string

const (
	// AdvisoryHold means sit this cycle out.
	AdvisoryHold AdvisoryKind = "HOLD"

	// AdvisoryWait means conditions are unclear; scan but raise no stakes.
	AdvisoryWait AdvisoryKind = "WAIT"

	// AdvisoryAct means trade, optionally under a named strategy.
	AdvisoryAct AdvisoryKind = "ACT"
)

// Advisory is an optional hint from an external collaborator. The scheduler
// treats it as advice only: an absent or failing advisor never blocks
// detection.
type Advisory struct {
	Kind AdvisoryKind

	// Strategy names the suggested mode when Kind is AdvisoryAct.
	Strategy string
}

// Blocks reports whether this advisory asks the scheduler to skip trading
// for the cycle.
func (a Advisory) Blocks() bool {
	return a.Kind == AdvisoryHold
}
