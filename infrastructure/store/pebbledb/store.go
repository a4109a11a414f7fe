package pebbledb

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/qubic/batch-transfer-engine/entities"
)

const ownerKey = "owner"
const signersKey = "signers"
const performanceMetricKey = "performance-metric"
const nextBatchIdKey = "next-batch-id"
const lastExecutionTickKey = "last-execution-tick"
const lastPublishedIdKey = "last-published-id"

const batchRecordKeyPrefix = 0x01

type Store struct {
	db *pebble.DB
}

func NewEngineStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "transfer-engine-store"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &Store{db: db}, nil
}

func (ps *Store) SetOwner(owner string) error {
	err := ps.db.Set([]byte(ownerKey), []byte(owner), pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting key [%s]", ownerKey)
	}
	return nil
}

func (ps *Store) GetOwner() (string, error) {
	value, closer, err := ps.db.Get([]byte(ownerKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "getting value for key [%s]", ownerKey)
	}
	defer closer.Close()

	return string(value), nil
}

func (ps *Store) AddAuthorizedSigner(identity string) error {
	signers, err := ps.loadSignerSet()
	if err != nil {
		return errors.Wrap(err, "getting signer set")
	}
	signers[identity] = true
	err = ps.saveSignerSet(signers)
	if err != nil {
		return errors.Wrap(err, "saving signer set")
	}
	return nil
}

func (ps *Store) RemoveAuthorizedSigner(identity string) error {
	signers, err := ps.loadSignerSet()
	if err != nil {
		return errors.Wrap(err, "getting signer set")
	}
	delete(signers, identity)
	err = ps.saveSignerSet(signers)
	if err != nil {
		return errors.Wrap(err, "saving signer set")
	}
	return nil
}

// IsAuthorizedSigner defaults to false for unknown identities.
func (ps *Store) IsAuthorizedSigner(identity string) (bool, error) {
	signers, err := ps.loadSignerSet()
	if err != nil {
		return false, errors.Wrap(err, "getting signer set")
	}
	return signers[identity], nil
}

func (ps *Store) SetPerformanceMetric(value uint64) error {
	var encoded []byte
	encoded = binary.BigEndian.AppendUint64(encoded, value)

	err := ps.db.Set([]byte(performanceMetricKey), encoded, pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting key [%s] to [%d]", performanceMetricKey, value)
	}
	return nil
}

func (ps *Store) GetPerformanceMetric() (uint64, error) {
	value, closer, err := ps.db.Get([]byte(performanceMetricKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "getting value for key [%s]", performanceMetricKey)
	}
	defer closer.Close()

	return binary.BigEndian.Uint64(value), nil
}

func (ps *Store) GetNextBatchId() (uint64, error) {
	value, closer, err := ps.db.Get([]byte(nextBatchIdKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "getting value for key [%s]", nextBatchIdKey)
	}
	defer closer.Close()

	return binary.BigEndian.Uint64(value), nil
}

// SaveBatchRecord writes the record, advances the batch id counter and, for
// successful batches, the last execution tick in one atomic commit.
func (ps *Store) SaveBatchRecord(record entities.BatchRecord) error {
	encoded, err := encodeBatchRecord(record)
	if err != nil {
		return errors.Wrap(err, "encoding batch record")
	}

	var nextId []byte
	nextId = binary.BigEndian.AppendUint64(nextId, record.Id+1)

	batch := ps.db.NewBatch()
	defer batch.Close()

	err = batch.Set(batchRecordKey(record.Id), encoded, nil)
	if err != nil {
		return errors.Wrapf(err, "adding record [%d] to batch", record.Id)
	}
	err = batch.Set([]byte(nextBatchIdKey), nextId, nil)
	if err != nil {
		return errors.Wrapf(err, "adding key [%s] to batch", nextBatchIdKey)
	}
	if record.Success {
		var tick []byte
		tick = binary.BigEndian.AppendUint32(tick, record.Tick)
		err = batch.Set([]byte(lastExecutionTickKey), tick, nil)
		if err != nil {
			return errors.Wrapf(err, "adding key [%s] to batch", lastExecutionTickKey)
		}
	}

	err = batch.Commit(pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "committing record [%d]", record.Id)
	}
	return nil
}

func (ps *Store) GetBatchRecord(id uint64) (entities.BatchRecord, error) {
	value, closer, err := ps.db.Get(batchRecordKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return entities.BatchRecord{}, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return entities.BatchRecord{}, errors.Wrapf(err, "getting record [%d]", id)
	}
	defer closer.Close()

	record, err := decodeBatchRecord(value)
	if err != nil {
		return entities.BatchRecord{}, errors.Wrapf(err, "decoding record [%d]", id)
	}
	return record, nil
}

func (ps *Store) GetLastExecutionTick() (uint32, error) {
	value, closer, err := ps.db.Get([]byte(lastExecutionTickKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "getting value for key [%s]", lastExecutionTickKey)
	}
	defer closer.Close()

	return binary.BigEndian.Uint32(value), nil
}

func (ps *Store) SetLastPublishedId(id uint64) error {
	var value []byte
	value = binary.BigEndian.AppendUint64(value, id)

	err := ps.db.Set([]byte(lastPublishedIdKey), value, pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting key [%s] to [%d]", lastPublishedIdKey, id)
	}
	return nil
}

func (ps *Store) GetLastPublishedId() (uint64, error) {
	value, closer, err := ps.db.Get([]byte(lastPublishedIdKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "getting value for key [%s]", lastPublishedIdKey)
	}
	defer closer.Close()

	return binary.BigEndian.Uint64(value), nil
}

func (ps *Store) Close() error {
	return ps.db.Close()
}

func batchRecordKey(id uint64) []byte {
	key := []byte{batchRecordKeyPrefix}
	return binary.BigEndian.AppendUint64(key, id)
}

func encodeBatchRecord(record entities.BatchRecord) ([]byte, error) {
	buffer := new(bytes.Buffer)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(record)
	if err != nil {
		return nil, errors.Wrap(err, "encoding record")
	}
	return buffer.Bytes(), nil
}

func decodeBatchRecord(value []byte) (entities.BatchRecord, error) {
	var record entities.BatchRecord
	decoder := gob.NewDecoder(bytes.NewBuffer(value))
	err := decoder.Decode(&record)
	if err != nil {
		return entities.BatchRecord{}, errors.Wrap(err, "decoding record")
	}
	return record, nil
}

func (ps *Store) saveSignerSet(signers map[string]bool) error {
	buffer := new(bytes.Buffer)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(signers)
	if err != nil {
		return errors.Wrap(err, "encoding signer set")
	}

	err = ps.db.Set([]byte(signersKey), buffer.Bytes(), pebble.Sync) // sync to prevent data loss. performance not important.
	if err != nil {
		return errors.Wrap(err, "saving signer set")
	}
	return nil
}

func (ps *Store) loadSignerSet() (map[string]bool, error) {
	value, closer, err := ps.db.Get([]byte(signersKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting value for key [%s]", signersKey)
	}
	defer closer.Close()

	var signers map[string]bool
	decoder := gob.NewDecoder(bytes.NewBuffer(value))
	err = decoder.Decode(&signers)
	if err != nil {
		return nil, errors.Wrap(err, "deserializing signer set")
	}

	return signers, nil
}
