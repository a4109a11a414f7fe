package kafka

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/qubic/batch-transfer-engine/entities"
	"github.com/twmb/franz-go/pkg/kgo"
)

type KafkaClient interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

type Client struct {
	kcl KafkaClient
}

func NewClient(kafkaClient KafkaClient) *Client {
	return &Client{
		kcl: kafkaClient,
	}
}

func (kc *Client) PublishRecords(ctx context.Context, records []entities.BatchRecord) error {

	wg := sync.WaitGroup{}
	errorChannel := make(chan error, len(records))

	for _, batchRecord := range records {

		record, err := createBatchRecordMessage(batchRecord)
		if err != nil {
			log.Printf("Error while creating batch record message: %v", err)
			errorChannel <- err
			break
		}

		wg.Add(1)
		kc.kcl.Produce(ctx, record, func(_ *kgo.Record, err error) {
			defer wg.Done()
			if err != nil {
				log.Printf("Error while producing batch record message: %v", err)
				errorChannel <- err
				return
			}
			errorChannel <- nil
		})
	}

	wg.Wait()
	close(errorChannel)

	for err := range errorChannel {
		if err != nil {
			return errors.New("encountered errors while producing batch record messages")
		}
	}

	return nil
}

func createBatchRecordMessage(record entities.BatchRecord) (*kgo.Record, error) {

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshalling batch record to json: %w", err)
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, record.Id)

	return &kgo.Record{
		Key:   key,
		Value: payload,
	}, nil

}
