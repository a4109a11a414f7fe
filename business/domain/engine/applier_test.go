package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/qubic/batch-transfer-engine/entities"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ErrMock = errors.New("mock error")

type appliedTransfer struct {
	Source      string
	Destination string
	Amount      uint64
}

type MockTransferService struct {
	attempts    int
	failAttempt int // 1-based attempt that fails, 0 never fails
	applied     []appliedTransfer
}

func (ts *MockTransferService) Transfer(_ context.Context, source, destination string, amount uint64) error {
	ts.attempts++
	if ts.failAttempt > 0 && ts.attempts == ts.failAttempt {
		return ErrMock
	}
	ts.applied = append(ts.applied, appliedTransfer{Source: source, Destination: destination, Amount: amount})
	return nil
}

func TestTransferApplier_AppliesInOrder(t *testing.T) {

	transfers := &MockTransferService{}
	applier := NewTransferApplier(transfers, time.Second, zap.NewNop().Sugar())

	instructions := []entities.TransferInstruction{
		{Recipient: "AAAA", Amount: 100},
		{Recipient: "BBBB", Amount: 200},
		{Recipient: "CCCC", Amount: 300},
	}

	err := applier.ApplyAll(context.Background(), "SOURCE", instructions)
	require.NoError(t, err)

	expected := []appliedTransfer{
		{Source: "SOURCE", Destination: "AAAA", Amount: 100},
		{Source: "SOURCE", Destination: "BBBB", Amount: 200},
		{Source: "SOURCE", Destination: "CCCC", Amount: 300},
	}
	if diff := cmp.Diff(expected, transfers.applied); diff != "" {
		t.Fatalf("Unexpected result: %v", diff)
	}

}

func TestTransferApplier_AbortsOnFirstFailure(t *testing.T) {

	transfers := &MockTransferService{failAttempt: 2}
	applier := NewTransferApplier(transfers, time.Second, zap.NewNop().Sugar())

	instructions := []entities.TransferInstruction{
		{Recipient: "AAAA", Amount: 100},
		{Recipient: "BBBB", Amount: 200},
		{Recipient: "CCCC", Amount: 300},
	}

	err := applier.ApplyAll(context.Background(), "SOURCE", instructions)
	require.Error(t, err)

	// the first transfer stays applied, the third is never attempted
	require.Equal(t, 2, transfers.attempts)
	expected := []appliedTransfer{
		{Source: "SOURCE", Destination: "AAAA", Amount: 100},
	}
	if diff := cmp.Diff(expected, transfers.applied); diff != "" {
		t.Fatalf("Unexpected result: %v", diff)
	}

}

func TestTransferApplier_EmptyBatch(t *testing.T) {

	transfers := &MockTransferService{}
	applier := NewTransferApplier(transfers, time.Second, zap.NewNop().Sugar())

	err := applier.ApplyAll(context.Background(), "SOURCE", nil)
	require.NoError(t, err)
	require.Zero(t, transfers.attempts)

}
