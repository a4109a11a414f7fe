package entities

// TransferInstruction is a single value transfer within a batch. Instructions
// are immutable once submitted.
type TransferInstruction struct {
	Recipient              string `json:"recipient"`
	Amount                 uint64 `json:"amount"`
	RequiresHighValueCheck bool   `json:"requiresHighValueCheck"`
}

// Indexes into BatchRecord.ConditionsMet. The order is fixed, stored records
// depend on it.
const (
	ConditionBusinessHours = iota
	ConditionHighValueAuthorization
	ConditionSufficientBalance
	ConditionPerformance
	NumConditions
)

// BatchRecord is the audit record of one batch execution. It is written once
// per execution attempt that reached transfer application and never mutated.
type BatchRecord struct {
	Id            uint64             `json:"id"`
	Tick          uint32             `json:"tick"`
	TotalAmount   uint64             `json:"totalAmount"`
	Success       bool               `json:"success"`
	ConditionsMet [NumConditions]bool `json:"conditionsMet"`
}
