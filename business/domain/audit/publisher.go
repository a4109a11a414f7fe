package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/qubic/batch-transfer-engine/entities"
	"github.com/qubic/batch-transfer-engine/metrics"
	"go.uber.org/zap"
)

type RecordProvider interface {
	GetNextBatchId() (uint64, error)
	GetBatchRecord(id uint64) (entities.BatchRecord, error)
	GetLastPublishedId() (uint64, error)
	SetLastPublishedId(id uint64) error
}

type RecordPublisher interface {
	PublishRecords(ctx context.Context, records []entities.BatchRecord) error
}

// Publisher forwards audit records appended by the engine to the configured
// downstream sinks. It runs outside of the batch execution path, publishing
// never blocks or fails a batch.
type Publisher struct {
	store          RecordProvider
	sinks          []RecordPublisher
	publishTimeout time.Duration
	batchSize      int
	interval       time.Duration
	metrics        *metrics.EngineMetrics
	logger         *zap.SugaredLogger
}

func NewPublisher(
	store RecordProvider,
	sinks []RecordPublisher,
	publishTimeout time.Duration,
	batchSize int,
	interval time.Duration,
	engineMetrics *metrics.EngineMetrics,
	logger *zap.SugaredLogger,
) *Publisher {
	return &Publisher{
		store:          store,
		sinks:          sinks,
		publishTimeout: publishTimeout,
		batchSize:      batchSize,
		interval:       interval,
		metrics:        engineMetrics,
		logger:         logger,
	}
}

func (p *Publisher) Start() error {
	for {
		err := p.runCycle()
		if err != nil {
			p.logger.Errorw("error running publish cycle", "error", err)
		}
		time.Sleep(p.interval)
	}
}

// runCycle publishes all records between the published watermark and the next
// batch id. The watermark only advances after every sink accepted the chunk,
// sink failures cause the chunk to be republished in a later cycle.
func (p *Publisher) runCycle() error {
	nextId, err := p.store.GetNextBatchId()
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		return nil // no batch executed yet
	}
	if err != nil {
		return fmt.Errorf("getting next batch id: %v", err)
	}

	lastPublished, err := p.store.GetLastPublishedId()
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		lastPublished = 0
	} else if err != nil {
		return fmt.Errorf("getting last published id: %v", err)
	}

	for lastPublished+1 < nextId {
		records, err := p.gatherRecords(lastPublished+1, nextId)
		if err != nil {
			return fmt.Errorf("gathering records: %v", err)
		}

		err = p.publishToAllSinks(records)
		if err != nil {
			return fmt.Errorf("publishing records: %v", err)
		}

		lastPublished = records[len(records)-1].Id
		err = p.store.SetLastPublishedId(lastPublished)
		if err != nil {
			return fmt.Errorf("setting last published id: %v", err)
		}

		p.metrics.AddPublishedRecords(len(records))
		p.logger.Infow("Published audit records", "count", len(records), "lastPublishedId", lastPublished)
	}

	return nil
}

func (p *Publisher) gatherRecords(fromId, nextId uint64) ([]entities.BatchRecord, error) {
	var records []entities.BatchRecord
	for id := fromId; id < nextId && len(records) < p.batchSize; id++ {
		record, err := p.store.GetBatchRecord(id)
		if err != nil {
			return nil, fmt.Errorf("getting record [%d]: %v", id, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (p *Publisher) publishToAllSinks(records []entities.BatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()

	for _, sink := range p.sinks {
		err := sink.PublishRecords(ctx, records)
		if err != nil {
			return err
		}
	}
	return nil
}
