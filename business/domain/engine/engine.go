package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/qubic/batch-transfer-engine/entities"
	"github.com/qubic/batch-transfer-engine/metrics"
	"go.uber.org/zap"
)

const MaxBatchInstructions = 50
const MaxBatchSignatures = 10

// LedgerInfo provides chain time and account balances from the external
// transfer service.
type LedgerInfo interface {
	CurrentTick(ctx context.Context) (uint32, error)
	GetBalance(ctx context.Context, identity string) (uint64, error)
}

type stateStore interface {
	GetOwner() (string, error)
	SetOwner(owner string) error
	IsAuthorizedSigner(identity string) (bool, error)
	AddAuthorizedSigner(identity string) error
	RemoveAuthorizedSigner(identity string) error
	GetPerformanceMetric() (uint64, error)
	SetPerformanceMetric(value uint64) error
	GetNextBatchId() (uint64, error)
	SaveBatchRecord(record entities.BatchRecord) error
	GetBatchRecord(id uint64) (entities.BatchRecord, error)
	GetLastExecutionTick() (uint32, error)
}

// Engine gates and applies batch transfers. All mutating operations are
// serialized, exactly one instruction stream mutates engine state at a time.
type Engine struct {
	mu      sync.Mutex
	store   stateStore
	ledger  LedgerInfo
	applier *TransferApplier
	metrics *metrics.EngineMetrics
	logger  *zap.SugaredLogger
}

func NewEngine(
	store stateStore,
	ledger LedgerInfo,
	applier *TransferApplier,
	engineMetrics *metrics.EngineMetrics,
	logger *zap.SugaredLogger,
) *Engine {
	return &Engine{
		store:   store,
		ledger:  ledger,
		applier: applier,
		metrics: engineMetrics,
		logger:  logger,
	}
}

// SetContractOwner replaces the owner. Only the current owner may call this.
func (e *Engine) SetContractOwner(caller, newOwner string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.store.SetOwner(newOwner); err != nil {
		return fmt.Errorf("setting owner: %v", err)
	}
	e.logger.Infow("Replaced contract owner", "owner", newOwner)
	return nil
}

// AddAuthorizedSigner flags an identity as authorized. Re-adding an already
// authorized signer is a no-op success.
func (e *Engine) AddAuthorizedSigner(caller, signer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.store.AddAuthorizedSigner(signer); err != nil {
		return fmt.Errorf("adding authorized signer: %v", err)
	}
	e.logger.Infow("Added authorized signer", "signer", signer)
	return nil
}

// RemoveAuthorizedSigner revokes an identity. Unknown identities stay
// unauthorized, removal of an unknown identity is a no-op success.
func (e *Engine) RemoveAuthorizedSigner(caller, signer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.store.RemoveAuthorizedSigner(signer); err != nil {
		return fmt.Errorf("removing authorized signer: %v", err)
	}
	e.logger.Infow("Removed authorized signer", "signer", signer)
	return nil
}

func (e *Engine) SetPerformanceMetrics(caller string, value uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.store.SetPerformanceMetric(value); err != nil {
		return fmt.Errorf("setting performance metric: %v", err)
	}
	return nil
}

// ExecuteBatchTransfer validates the preconditions for the batch and applies
// all transfers from the caller's account. Condition failures reject the batch
// without an audit record. Once transfer application starts a record is
// written, success or failure, and the batch id advances.
func (e *Engine) ExecuteBatchTransfer(ctx context.Context, caller string, instructions []entities.TransferInstruction, signatures []string) error {
	if len(instructions) > MaxBatchInstructions {
		return errors.Wrapf(entities.ErrBatchLimitExceeded, "%d instructions exceed limit of %d", len(instructions), MaxBatchInstructions)
	}
	if len(signatures) > MaxBatchSignatures {
		return errors.Wrapf(entities.ErrBatchLimitExceeded, "%d signatures exceed limit of %d", len(signatures), MaxBatchSignatures)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tick, err := e.ledger.CurrentTick(ctx)
	if err != nil {
		return fmt.Errorf("getting current tick: %v", err)
	}

	var totalAmount uint64
	for _, instruction := range instructions {
		totalAmount += instruction.Amount
	}

	conditions, err := e.evaluateBatchConditions(ctx, caller, tick, totalAmount, len(signatures))
	if err != nil {
		return fmt.Errorf("evaluating conditions: %v", err)
	}

	// conditions one to three gate execution individually. The performance
	// condition is recorded in the audit vector but does not gate.
	if !conditions[entities.ConditionBusinessHours] {
		e.metrics.IncRejectedBatches()
		e.logger.Infow("Rejected batch outside of business hours", "tick", tick, "hour", HourOfTick(tick))
		return entities.ErrInvalidTime
	}
	if !conditions[entities.ConditionHighValueAuthorization] {
		e.metrics.IncRejectedBatches()
		e.logger.Infow("Rejected high value batch without authorization",
			"caller", caller, "totalAmount", totalAmount, "signatures", len(signatures))
		return entities.ErrUnauthorized
	}
	if !conditions[entities.ConditionSufficientBalance] {
		e.metrics.IncRejectedBatches()
		e.logger.Infow("Rejected batch with insufficient balance", "caller", caller, "totalAmount", totalAmount)
		return entities.ErrInsufficientBalance
	}

	applyErr := e.applier.ApplyAll(ctx, caller, instructions)

	id, err := e.store.GetNextBatchId()
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		id = 1
	} else if err != nil {
		return fmt.Errorf("getting next batch id: %v", err)
	}

	record := entities.BatchRecord{
		Id:            id,
		Tick:          tick,
		TotalAmount:   totalAmount,
		Success:       applyErr == nil,
		ConditionsMet: conditions,
	}
	if err := e.store.SaveBatchRecord(record); err != nil {
		return fmt.Errorf("saving batch record: %v", err)
	}
	e.metrics.SetLastBatchId(id)

	if applyErr != nil {
		e.metrics.IncFailedBatches()
		e.logger.Errorw("Batch failed during transfer application", "id", id, "tick", tick, "error", applyErr)
		return fmt.Errorf("%w: %v", entities.ErrTransferFailed, applyErr)
	}

	e.metrics.IncExecutedBatches()
	e.metrics.SetLastExecutionTick(tick)
	e.logger.Infow("Executed batch", "id", id, "tick", tick, "transfers", len(instructions), "totalAmount", totalAmount)
	return nil
}

func (e *Engine) evaluateBatchConditions(ctx context.Context, caller string, tick uint32, totalAmount uint64, signatureCount int) ([entities.NumConditions]bool, error) {
	var conditions [entities.NumConditions]bool

	balance, err := e.ledger.GetBalance(ctx, caller)
	if err != nil {
		return conditions, fmt.Errorf("getting balance of [%s]: %v", caller, err)
	}

	callerIsAuthorized, err := e.store.IsAuthorizedSigner(caller)
	if err != nil {
		return conditions, fmt.Errorf("getting signer status: %v", err)
	}

	performanceMetric, err := e.store.GetPerformanceMetric()
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		performanceMetric = 0
	} else if err != nil {
		return conditions, fmt.Errorf("getting performance metric: %v", err)
	}

	conditions = EvaluateConditions(ConditionInput{
		Tick:               tick,
		TotalAmount:        totalAmount,
		AvailableBalance:   balance,
		CallerIsAuthorized: callerIsAuthorized,
		SignatureCount:     signatureCount,
		PerformanceMetric:  performanceMetric,
	})
	return conditions, nil
}

// GetTransferRecord returns the audit record for the given batch id.
// ErrStoreEntityNotFound is returned for unknown ids.
func (e *Engine) GetTransferRecord(id uint64) (*entities.BatchRecord, error) {
	record, err := e.store.GetBatchRecord(id)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetLastExecution returns the tick of the latest successful batch, zero if
// no batch succeeded yet.
func (e *Engine) GetLastExecution() (uint32, error) {
	tick, err := e.store.GetLastExecutionTick()
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting last execution tick: %v", err)
	}
	return tick, nil
}

func (e *Engine) requireOwner(caller string) error {
	owner, err := e.store.GetOwner()
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		return entities.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("getting owner: %v", err)
	}
	if caller != owner {
		return entities.ErrUnauthorized
	}
	return nil
}
