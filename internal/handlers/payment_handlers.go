package handlers

import (
	"net/http"

	"github.com/rentnest/rentnest/internal/service"
	"github.com/sirupsen/logrus"
)

type PaymentHandlers struct {
	paymentService *service.PaymentService
	logger         *logrus.Logger
}

func NewPaymentHandlers(paymentService *service.PaymentService, logger *logrus.Logger) *PaymentHandlers {
	return &PaymentHandlers{
		paymentService: paymentService,
		logger:         logger,
	}
}

type VerifyUpgradeRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

func (h *PaymentHandlers) CreateUpgradeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	order, err := h.paymentService.CreateUpgradeOrder(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, order)
}

func (h *PaymentHandlers) VerifyUpgrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req VerifyUpgradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "order_id, payment_id and signature are required", nil)
		return
	}

	user, err := h.paymentService.VerifyUpgrade(r.Context(), userID, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
