package handlers

import (
	"net/http"
	"strconv"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/services"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// TransactionHandler serves the ledger endpoints: purchases, adjustments,
// redemptions, transfers, event awards and the audit views.
type TransactionHandler struct {
	transactions *services.TransactionService
	txRepo       *repositories.TransactionRepository
}

func NewTransactionHandler(transactions *services.TransactionService, txRepo *repositories.TransactionRepository) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, txRepo: txRepo}
}

func (h *TransactionHandler) reload(w http.ResponseWriter, r *http.Request, id uint) {
	record, err := h.txRepo.GetTransactionByID(id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionView(record))
}

// Create handles POST /transactions, dispatching on the type field.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Utorid       string   `json:"utorid"`
		Type         string   `json:"type"`
		Spent        *float64 `json:"spent"`
		Amount       *int     `json:"amount"`
		RelatedID    *uint    `json:"relatedId"`
		PromotionIDs []uint   `json:"promotionIds"`
		Remark       string   `json:"remark"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	switch req.Type {
	case models.TxTypePurchase:
		if req.Spent == nil {
			WriteError(w, r, errors.New(errors.ErrCodeValidation, "spent is required for purchases"))
			return
		}
		record, err := h.transactions.CreatePurchase(actor, req.Utorid, *req.Spent, req.PromotionIDs, req.Remark)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		h.reload(w, r, record.ID)

	case models.TxTypeAdjustment:
		if req.Amount == nil {
			WriteError(w, r, errors.New(errors.ErrCodeValidation, "amount is required for adjustments"))
			return
		}
		if req.RelatedID == nil {
			WriteError(w, r, errors.New(errors.ErrCodeValidation, "relatedId is required for adjustments"))
			return
		}
		record, err := h.transactions.CreateAdjustment(actor, req.Utorid, *req.Amount, *req.RelatedID, req.PromotionIDs, req.Remark)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		h.reload(w, r, record.ID)

	default:
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "type must be purchase or adjustment"))
	}
}

func transactionFilterFromQuery(r *http.Request) (repositories.TransactionListFilter, error) {
	var filter repositories.TransactionListFilter

	page, limit, err := parsePagination(r)
	if err != nil {
		return filter, err
	}
	filter.Page = page
	filter.Limit = limit

	filter.Name = r.URL.Query().Get("name")
	filter.CreatedBy = r.URL.Query().Get("createdBy")
	filter.Type = r.URL.Query().Get("type")
	if filter.Type != "" && !models.ValidTxType(filter.Type) {
		return filter, errors.New(errors.ErrCodeValidation, "invalid transaction type")
	}

	filter.Suspicious, err = parseBoolQuery(r, "suspicious")
	if err != nil {
		return filter, err
	}

	if raw := r.URL.Query().Get("promotionId"); raw != "" {
		id, err := parseIDParam(raw, "promotion id")
		if err != nil {
			return filter, err
		}
		filter.PromotionID = &id
	}
	if raw := r.URL.Query().Get("relatedId"); raw != "" {
		if filter.Type == "" {
			return filter, errors.New(errors.ErrCodeValidation, "relatedId requires a type filter")
		}
		id, err := parseIDParam(raw, "related id")
		if err != nil {
			return filter, err
		}
		filter.RelatedID = &id
	}
	if raw := r.URL.Query().Get("amount"); raw != "" {
		operator := r.URL.Query().Get("operator")
		if operator != "gte" && operator != "lte" {
			return filter, errors.New(errors.ErrCodeValidation, "operator must be gte or lte")
		}
		amount, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New(errors.ErrCodeValidation, "amount must be an integer")
		}
		filter.Amount = &amount
		filter.Operator = operator
	}
	return filter, nil
}

// List handles GET /transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	records, count, err := h.txRepo.ListTransactions(filter)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	results := make([]map[string]interface{}, 0, len(records))
	for i := range records {
		results = append(results, transactionView(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count, "results": results})
}

// Get handles GET /transactions/{transactionId}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "transactionId"), "transaction id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	record, err := h.txRepo.GetTransactionByID(id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionView(record))
}

// SetSuspicious handles PATCH /transactions/{transactionId}/suspicious.
func (h *TransactionHandler) SetSuspicious(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, err := parseIDParam(chi.URLParam(r, "transactionId"), "transaction id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req struct {
		Suspicious *bool `json:"suspicious"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Suspicious == nil {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "suspicious is required"))
		return
	}

	record, err := h.transactions.SetSuspicious(actor, id, *req.Suspicious)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	full, err := h.txRepo.GetTransactionByID(record.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionView(full))
}

// Process handles PATCH /transactions/{transactionId}/processed.
func (h *TransactionHandler) Process(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, err := parseIDParam(chi.URLParam(r, "transactionId"), "transaction id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req struct {
		Processed *bool `json:"processed"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Processed == nil || !*req.Processed {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "processed can only be set to true"))
		return
	}

	record, err := h.transactions.ProcessRedemption(actor, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	full, err := h.txRepo.GetTransactionByID(record.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionView(full))
}

// CreateRedemption handles POST /users/me/transactions.
func (h *TransactionHandler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Type   string `json:"type"`
		Amount *int   `json:"amount"`
		Remark string `json:"remark"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Type != models.TxTypeRedemption {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "type must be redemption"))
		return
	}
	if req.Amount == nil {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "amount is required"))
		return
	}

	record, err := h.transactions.CreateRedemption(actor, *req.Amount, req.Remark)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.reload(w, r, record.ID)
}

// ListMine handles GET /users/me/transactions.
func (h *TransactionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	filter.UserID = actor.ID
	filter.Name = ""
	filter.CreatedBy = ""

	records, count, err := h.txRepo.ListTransactions(filter)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	results := make([]map[string]interface{}, 0, len(records))
	for i := range records {
		results = append(results, transactionView(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count, "results": results})
}

// CreateTransfer handles POST /users/{userId}/transactions.
func (h *TransactionHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	recipientID, err := parseIDParam(chi.URLParam(r, "userId"), "user id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req struct {
		Type   string `json:"type"`
		Amount *int   `json:"amount"`
		Remark string `json:"remark"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Type != models.TxTypeTransfer {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "type must be transfer"))
		return
	}
	if req.Amount == nil {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "amount is required"))
		return
	}

	record, err := h.transactions.CreateTransfer(actor, recipientID, *req.Amount, req.Remark)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.reload(w, r, record.ID)
}

// AwardEventPoints handles POST /events/{eventId}/transactions.
func (h *TransactionHandler) AwardEventPoints(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req struct {
		Type   string `json:"type"`
		Utorid string `json:"utorid"`
		Amount *int   `json:"amount"`
		Remark string `json:"remark"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Type != models.TxTypeEvent {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "type must be event"))
		return
	}
	if req.Amount == nil {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "amount is required"))
		return
	}

	records, err := h.transactions.AwardEventPoints(actor, eventID, *req.Amount, req.Utorid, req.Remark)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	results := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		full, err := h.txRepo.GetTransactionByID(record.ID)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		results = append(results, transactionView(full))
	}

	if req.Utorid != "" && len(results) == 1 {
		writeJSON(w, http.StatusCreated, results[0])
		return
	}
	writeJSON(w, http.StatusCreated, results)
}
