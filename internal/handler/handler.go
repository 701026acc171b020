package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/afelipegc/plata/internal/ledger"
	"github.com/afelipegc/plata/internal/metrics"
)

// Handler exposes the transfer engine and the read-only query facade over
// HTTP.
type Handler struct {
	engine  *ledger.Engine
	reader  ledger.Reader
	metrics *metrics.Collector
	log     *logrus.Logger
}

// NewHandler initializes a handler.
func NewHandler(engine *ledger.Engine, reader ledger.Reader, collector *metrics.Collector, log *logrus.Logger) *Handler {
	return &Handler{engine: engine, reader: reader, metrics: collector, log: log}
}

type transferRequest struct {
	FromIdentifier string `json:"fromIdentifier"`
	ToIdentifier   string `json:"toIdentifier"`
	Amount         any    `json:"amount"`
	Note           string `json:"note"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type createAccountRequest struct {
	Identifier     string `json:"identifier"`
	DisplayName    string `json:"displayName"`
	InitialBalance any    `json:"initialBalance"`
}

type errorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

// CreateTransfer handles POST /api/transfers.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, errors.Join(ledger.ErrInvalidRequest, err))
		return
	}

	start := time.Now()
	result, err := h.engine.Transfer(r.Context(), ledger.TransferRequest{
		FromIdentifier: req.FromIdentifier,
		ToIdentifier:   req.ToIdentifier,
		Amount:         amountString(req.Amount),
		Note:           req.Note,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.metrics.RecordTransfer(ledger.Kind(err), time.Since(start))
		writeError(w, err)
		return
	}

	h.metrics.RecordTransfer("Succeeded", time.Since(start))
	if result.Replayed {
		w.Header().Set("X-Idempotency-Replayed", "true")
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateAccount handles POST /api/accounts (provisioning, outside the
// transfer request path).
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, errors.Join(ledger.ErrInvalidRequest, err))
		return
	}

	account, err := h.engine.CreateAccount(r.Context(), req.Identifier, req.DisplayName, amountString(req.InitialBalance))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /api/accounts/{identifier}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	account, err := h.reader.GetAccount(r.Context(), identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ListAccounts handles GET /api/accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.reader.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ListTransfers handles GET /api/transfers.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	records, err := h.reader.ListTransfers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ListAccountTransfers handles GET /api/transfers/{identifier}.
func (h *Handler) ListAccountTransfers(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	history, err := h.reader.ListTransfersForAccount(r.Context(), identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body keeping numbers as json.Number so
// amounts survive without a float round trip.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}

// amountString normalizes a JSON amount field, which the wire format allows
// as either a string or a number.
func amountString(v any) string {
	switch amount := v.(type) {
	case string:
		return amount
	case json.Number:
		return amount.String()
	case nil:
		return ""
	default:
		// Arrays, objects and booleans fall through to the engine's
		// amount parser, which rejects them.
		return "invalid"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		ErrorKind: ledger.Kind(err),
		Message:   err.Error(),
	})
}

// statusFor maps the error taxonomy to HTTP statuses: business rejections
// are 400, missing accounts 404, duplicate provisioning 409, and anything
// infrastructural 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateIdentifier):
		return http.StatusConflict
	case ledger.IsBusiness(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
