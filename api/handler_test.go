package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/qubic/batch-transfer-engine/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockEngine struct {
	executeErr     error
	executedCaller string
	record         *entities.BatchRecord
	recordLookups  int
	lastExecution  uint32
	adminErr       error
}

func (me *MockEngine) SetContractOwner(_, _ string) error {
	return me.adminErr
}

func (me *MockEngine) AddAuthorizedSigner(_, _ string) error {
	return me.adminErr
}

func (me *MockEngine) RemoveAuthorizedSigner(_, _ string) error {
	return me.adminErr
}

func (me *MockEngine) SetPerformanceMetrics(_ string, _ uint64) error {
	return me.adminErr
}

func (me *MockEngine) ExecuteBatchTransfer(_ context.Context, caller string, _ []entities.TransferInstruction, _ []string) error {
	me.executedCaller = caller
	return me.executeErr
}

func (me *MockEngine) GetTransferRecord(id uint64) (*entities.BatchRecord, error) {
	me.recordLookups++
	if me.record == nil || me.record.Id != id {
		return nil, entities.ErrStoreEntityNotFound
	}
	return me.record, nil
}

func (me *MockEngine) GetLastExecution() (uint32, error) {
	return me.lastExecution, nil
}

func setupServer(t *testing.T, engine *MockEngine) *httptest.Server {
	t.Helper()

	cache := ttlcache.New[uint64, *entities.BatchRecord](
		ttlcache.WithTTL[uint64, *entities.BatchRecord](time.Minute),
	)
	mux := http.NewServeMux()
	NewHandler(engine, cache).RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHandler_ExecuteBatch(t *testing.T) {

	engine := &MockEngine{}
	server := setupServer(t, engine)

	body := `{
		"caller": "CALLER",
		"instructions": [{"recipient": "AAAA", "amount": 100, "requiresHighValueCheck": false}],
		"signatures": ["CALLER"]
	}`
	response, err := http.Post(server.URL+"/v1/batches", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "CALLER", engine.executedCaller)

}

func TestHandler_ExecuteBatch_ErrorMapping(t *testing.T) {

	testData := []struct {
		name           string
		engineError    error
		expectedStatus int
	}{
		{
			name:           "TestUnauthorized",
			engineError:    entities.ErrUnauthorized,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "TestInvalidTime",
			engineError:    entities.ErrInvalidTime,
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "TestInsufficientBalance",
			engineError:    entities.ErrInsufficientBalance,
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "TestBatchLimitExceeded",
			engineError:    entities.ErrBatchLimitExceeded,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "TestTransferFailed",
			engineError:    entities.ErrTransferFailed,
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {

			engine := &MockEngine{executeErr: testRun.engineError}
			server := setupServer(t, engine)

			body := `{"caller": "CALLER", "instructions": [], "signatures": []}`
			response, err := http.Post(server.URL+"/v1/batches", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer response.Body.Close()

			assert.Equal(t, testRun.expectedStatus, response.StatusCode)

		})
	}

}

func TestHandler_GetBatchRecord(t *testing.T) {

	engine := &MockEngine{
		record: &entities.BatchRecord{
			Id:            1,
			Tick:          12345,
			TotalAmount:   600,
			Success:       true,
			ConditionsMet: [entities.NumConditions]bool{true, true, true, true},
		},
	}
	server := setupServer(t, engine)

	response, err := http.Get(server.URL + "/v1/batches/1")
	require.NoError(t, err)
	defer response.Body.Close()

	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "application/json", response.Header.Get("Content-Type"))

}

func TestHandler_GetBatchRecord_CachesImmutableRecords(t *testing.T) {

	engine := &MockEngine{
		record: &entities.BatchRecord{Id: 1, Tick: 12345, TotalAmount: 600, Success: true},
	}
	server := setupServer(t, engine)

	for i := 0; i < 3; i++ {
		response, err := http.Get(server.URL + "/v1/batches/1")
		require.NoError(t, err)
		require.NoError(t, response.Body.Close())
		require.Equal(t, http.StatusOK, response.StatusCode)
	}

	assert.Equal(t, 1, engine.recordLookups)

}

func TestHandler_GetBatchRecord_NotFound(t *testing.T) {

	engine := &MockEngine{}
	server := setupServer(t, engine)

	response, err := http.Get(server.URL + "/v1/batches/99")
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusNotFound, response.StatusCode)

}

func TestHandler_GetBatchRecord_InvalidId(t *testing.T) {

	engine := &MockEngine{}
	server := setupServer(t, engine)

	response, err := http.Get(server.URL + "/v1/batches/notanumber")
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

}

func TestHandler_GetStatus(t *testing.T) {

	engine := &MockEngine{lastExecution: 12345}
	server := setupServer(t, engine)

	response, err := http.Get(server.URL + "/v1/status")
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)

}

func TestHandler_AdminOperations_Unauthorized(t *testing.T) {

	engine := &MockEngine{adminErr: entities.ErrUnauthorized}
	server := setupServer(t, engine)

	body := `{"caller": "SOMEONE", "newOwner": "SOMEONE"}`
	response, err := http.Post(server.URL+"/v1/owner", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusForbidden, response.StatusCode)

}

func TestHandler_AddSigner(t *testing.T) {

	engine := &MockEngine{}
	server := setupServer(t, engine)

	body := `{"caller": "OWNER", "signer": "AAAA"}`
	response, err := http.Post(server.URL+"/v1/signers", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)

}

func TestHandler_GetHealth(t *testing.T) {

	engine := &MockEngine{}
	server := setupServer(t, engine)

	response, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)

}
