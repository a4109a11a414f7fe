package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/jellydator/ttlcache/v3"
	"github.com/qubic/batch-transfer-engine/entities"
)

type BatchEngine interface {
	SetContractOwner(caller, newOwner string) error
	AddAuthorizedSigner(caller, signer string) error
	RemoveAuthorizedSigner(caller, signer string) error
	SetPerformanceMetrics(caller string, value uint64) error
	ExecuteBatchTransfer(ctx context.Context, caller string, instructions []entities.TransferInstruction, signatures []string) error
	GetTransferRecord(id uint64) (*entities.BatchRecord, error)
	GetLastExecution() (uint32, error)
}

type Handler struct {
	engine      BatchEngine
	recordCache *ttlcache.Cache[uint64, *entities.BatchRecord]
}

type ExecuteBatchRequest struct {
	Caller       string                         `json:"caller"`
	Instructions []entities.TransferInstruction `json:"instructions"`
	Signatures   []string                       `json:"signatures"`
}

type SetOwnerRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

type SignerRequest struct {
	Caller string `json:"caller"`
	Signer string `json:"signer"`
}

type PerformanceRequest struct {
	Caller string `json:"caller"`
	Value  uint64 `json:"value"`
}

type StatusResponse struct {
	LastExecutionTick uint32 `json:"lastExecutionTick"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler serves the engine's boundary operations. Batch records are
// immutable once written, the record cache never serves stale data.
func NewHandler(engine BatchEngine, recordCache *ttlcache.Cache[uint64, *entities.BatchRecord]) *Handler {
	return &Handler{
		engine:      engine,
		recordCache: recordCache,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/batches", h.ExecuteBatch)
	mux.HandleFunc("GET /v1/batches/{id}", h.GetBatchRecord)
	mux.HandleFunc("GET /v1/status", h.GetStatus)
	mux.HandleFunc("POST /v1/owner", h.SetOwner)
	mux.HandleFunc("POST /v1/signers", h.AddSigner)
	mux.HandleFunc("DELETE /v1/signers", h.RemoveSigner)
	mux.HandleFunc("PUT /v1/performance", h.SetPerformanceMetrics)
	mux.HandleFunc("GET /health", h.GetHealth)
}

func (h *Handler) ExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var request ExecuteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body")
		return
	}

	err := h.engine.ExecuteBatchTransfer(r.Context(), request.Caller, request.Instructions, request.Signatures)
	if err != nil {
		log.Printf("Error executing batch: %v", err)
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) GetBatchRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	if cached := h.recordCache.Get(id); cached != nil {
		writeJson(w, cached.Value())
		return
	}

	record, err := h.engine.GetTransferRecord(id)
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		writeError(w, http.StatusNotFound, "batch record not found")
		return
	}
	if err != nil {
		log.Printf("Error getting batch record: %v", err)
		writeError(w, http.StatusInternalServerError, "getting batch record")
		return
	}

	h.recordCache.Set(id, record, ttlcache.DefaultTTL)
	writeJson(w, record)
}

func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	lastExecution, err := h.engine.GetLastExecution()
	if err != nil {
		log.Printf("Error getting last execution: %v", err)
		writeError(w, http.StatusInternalServerError, "getting last execution")
		return
	}

	writeJson(w, StatusResponse{LastExecutionTick: lastExecution})
}

func (h *Handler) SetOwner(w http.ResponseWriter, r *http.Request) {
	var request SetOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body")
		return
	}

	if err := h.engine.SetContractOwner(request.Caller, request.NewOwner); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) AddSigner(w http.ResponseWriter, r *http.Request) {
	var request SignerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body")
		return
	}

	if err := h.engine.AddAuthorizedSigner(request.Caller, request.Signer); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) RemoveSigner(w http.ResponseWriter, r *http.Request) {
	var request SignerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body")
		return
	}

	if err := h.engine.RemoveAuthorizedSigner(request.Caller, request.Signer); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) SetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	var request PerformanceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body")
		return
	}

	if err := h.engine.SetPerformanceMetrics(request.Caller, request.Value); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJson(w, HealthResponse{Status: "UP"})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entities.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, entities.ErrInvalidTime):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, entities.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, entities.ErrBatchLimitExceeded):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrTransferFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJson(w http.ResponseWriter, body any) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Error encoding response", 500)
		return
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(ErrorResponse{Error: message})
	if err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
