package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/qubic/batch-transfer-engine/entities"
	"go.uber.org/zap"
)

type TransferService interface {
	Transfer(ctx context.Context, source, destination string, amount uint64) error
}

type TransferApplier struct {
	transfers       TransferService
	transferTimeout time.Duration
	logger          *zap.SugaredLogger
}

func NewTransferApplier(transfers TransferService, transferTimeout time.Duration, logger *zap.SugaredLogger) *TransferApplier {
	return &TransferApplier{
		transfers:       transfers,
		transferTimeout: transferTimeout,
		logger:          logger,
	}
}

// ApplyAll attempts the transfers strictly in instruction order and aborts on
// the first failure. Transfers applied before the failure are not reversed
// here, rollback of the whole batch is the transfer service's concern.
func (a *TransferApplier) ApplyAll(ctx context.Context, source string, instructions []entities.TransferInstruction) error {
	for i, instruction := range instructions {
		err := func() error {
			transferCtx, cancel := context.WithTimeout(ctx, a.transferTimeout)
			defer cancel()

			return a.transfers.Transfer(transferCtx, source, instruction.Recipient, instruction.Amount)
		}()

		if err != nil {
			a.logger.Errorw("error applying transfer",
				"index", i, "destination", instruction.Recipient, "amount", instruction.Amount, "error", err)
			return fmt.Errorf("applying transfer %d of %d: %v", i+1, len(instructions), err)
		}
	}

	return nil
}
