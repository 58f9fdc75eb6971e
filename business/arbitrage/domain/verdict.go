package domain

// Verdict is the detector's decision for one quote snapshot. Every skip
// carries its reason so the audit trail can say why nothing traded.
type Verdict string

const (
	// VerdictTrade means the opportunity clears every gate.
	VerdictTrade Verdict = "TRADE"

	// VerdictNoRoute means no direction had liquidity on both legs.
	VerdictNoRoute Verdict = "NO_ROUTE"

	// VerdictBelowThreshold means net profit did not clear the minimum.
	VerdictBelowThreshold Verdict = "BELOW_THRESHOLD"

	// VerdictROISuspicious means the return was too good to be real,
	// usually a stale or poisoned quote.
	VerdictROISuspicious Verdict = "ROI_SUSPICIOUS"

	// VerdictDiverged means the venue price strayed too far from the
	// independent reference.
	VerdictDiverged Verdict = "REFERENCE_DIVERGENCE"
)

// Tradeable reports whether the verdict allows execution.
func (v Verdict) Tradeable() bool {
	return v == VerdictTrade
}
