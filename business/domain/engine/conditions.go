package engine

import "github.com/qubic/batch-transfer-engine/entities"

// HighValueThreshold is the batch total above which additional authorization
// is required. Amounts are in micro units.
const HighValueThreshold = uint64(50_000 * 1_000_000)

// balanceBufferPercent requires the caller to hold 110% of the batch total.
const balanceBufferPercent = 110

type ConditionInput struct {
	Tick               uint32
	TotalAmount        uint64
	AvailableBalance   uint64
	CallerIsAuthorized bool
	SignatureCount     int
	PerformanceMetric  uint64
}

// EvaluateConditions computes the ordered condition vector that is stored in
// the audit record. The high value condition requires more than one signature,
// two or more signers have to attest high value batches. The balance check
// uses truncating integer division, stored records depend on the exact value.
func EvaluateConditions(in ConditionInput) [entities.NumConditions]bool {
	var met [entities.NumConditions]bool
	met[entities.ConditionBusinessHours] = isWithinBusinessHours(in.Tick)
	met[entities.ConditionHighValueAuthorization] = in.TotalAmount <= HighValueThreshold ||
		(in.CallerIsAuthorized && in.SignatureCount > 1)
	met[entities.ConditionSufficientBalance] = in.AvailableBalance >= in.TotalAmount*balanceBufferPercent/100
	met[entities.ConditionPerformance] = in.PerformanceMetric > 0
	return met
}
