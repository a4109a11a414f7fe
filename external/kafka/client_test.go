package kafka

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/qubic/batch-transfer-engine/entities"
	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"
)

type MockKafkaClient struct {
	shouldError bool
	produced    []*kgo.Record
}

func (mkc *MockKafkaClient) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {

	if mkc.shouldError {
		go promise(nil, errors.New("dummy error"))
		return
	}

	mkc.produced = append(mkc.produced, r)
	go promise(r, nil)
}

func TestClient_PublishRecords(t *testing.T) {

	testData := []struct {
		name        string
		records     []entities.BatchRecord
		shouldError bool
	}{
		{
			name: "TestPublishRecords_1",
			records: []entities.BatchRecord{
				{
					Id:            1,
					Tick:          12345,
					TotalAmount:   60_000_000_000,
					Success:       true,
					ConditionsMet: [entities.NumConditions]bool{true, true, true, true},
				},
				{
					Id:            2,
					Tick:          12389,
					TotalAmount:   600,
					Success:       false,
					ConditionsMet: [entities.NumConditions]bool{true, true, true, false},
				},
			},
			shouldError: false,
		},
		{
			name: "TestPublishRecordsError_1",
			records: []entities.BatchRecord{
				{
					Id:          3,
					Tick:        12400,
					TotalAmount: 100,
					Success:     true,
				},
			},
			shouldError: true,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {

			mockClient := MockKafkaClient{shouldError: testRun.shouldError}
			client := NewClient(&mockClient)

			err := client.PublishRecords(context.Background(), testRun.records)

			if testRun.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, len(testRun.records), len(mockClient.produced))
			}

		})
	}

}

func TestClient_CreateBatchRecordMessage(t *testing.T) {

	record := entities.BatchRecord{
		Id:            42,
		Tick:          12345,
		TotalAmount:   600,
		Success:       true,
		ConditionsMet: [entities.NumConditions]bool{true, true, true, false},
	}

	message, err := createBatchRecordMessage(record)
	assert.NoError(t, err)

	assert.Equal(t, uint64(42), binary.BigEndian.Uint64(message.Key))
	assert.JSONEq(t, `{
		"id": 42,
		"tick": 12345,
		"totalAmount": 600,
		"success": true,
		"conditionsMet": [true, true, true, false]
	}`, string(message.Value))

}
