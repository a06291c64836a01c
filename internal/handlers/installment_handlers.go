package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"eventpay/internal/models"
	"eventpay/internal/services"
)

// InstallmentHandler exposes the manual ledger operations organizers use:
// record a payment taken outside the gateway, waive part of an
// installment, or add a one-off late fee. Every call is attributed to the
// authenticated actor in the transaction audit trail.
type InstallmentHandler struct {
	ledger *services.LedgerService
}

func NewInstallmentHandler(ledger *services.LedgerService) *InstallmentHandler {
	return &InstallmentHandler{ledger: ledger}
}

type processPaymentRequest struct {
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	Method       string  `json:"method" validate:"required"`
	ExternalTxID string  `json:"external_tx_id"`
	Notes        string  `json:"notes"`
}

type adjustmentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Notes  string  `json:"notes"`
}

type ledgerOpResponse struct {
	Installment *models.Installment `json:"installment"`
	Transaction *models.Transaction `json:"transaction"`
}

// ProcessPayment records a manual payment against one installment
func (h *InstallmentHandler) ProcessPayment(c echo.Context) error {
	id, err := installmentID(c)
	if err != nil {
		return err
	}

	var req processPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inst, txn, err := h.ledger.ProcessPayment(c.Request().Context(), id, req.Amount, req.Method, req.ExternalTxID, req.Notes, actorFrom(c))
	if err != nil {
		return err
	}
	if err := h.ledger.RecomputeRegistrationStatus(c.Request().Context(), inst.RegistrationID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ledgerOpResponse{Installment: inst, Transaction: txn})
}

// ProcessRefund returns part of a recorded payment
func (h *InstallmentHandler) ProcessRefund(c echo.Context) error {
	id, err := installmentID(c)
	if err != nil {
		return err
	}

	var req processPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inst, txn, err := h.ledger.ProcessRefund(c.Request().Context(), id, req.Amount, req.Method, req.ExternalTxID, req.Notes, actorFrom(c))
	if err != nil {
		return err
	}
	if err := h.ledger.RecomputeRegistrationStatus(c.Request().Context(), inst.RegistrationID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ledgerOpResponse{Installment: inst, Transaction: txn})
}

// ApplyDiscount waives part of an installment
func (h *InstallmentHandler) ApplyDiscount(c echo.Context) error {
	id, err := installmentID(c)
	if err != nil {
		return err
	}

	var req adjustmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inst, txn, err := h.ledger.ApplyDiscount(c.Request().Context(), id, req.Amount, req.Notes, actorFrom(c))
	if err != nil {
		return err
	}
	if err := h.ledger.RecomputeRegistrationStatus(c.Request().Context(), inst.RegistrationID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ledgerOpResponse{Installment: inst, Transaction: txn})
}

// ApplyLateFee adds a manual late fee to an installment
func (h *InstallmentHandler) ApplyLateFee(c echo.Context) error {
	id, err := installmentID(c)
	if err != nil {
		return err
	}

	var req adjustmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inst, txn, err := h.ledger.ApplyLateFee(c.Request().Context(), id, req.Amount, req.Notes, actorFrom(c))
	if err != nil {
		return err
	}
	if err := h.ledger.RecomputeRegistrationStatus(c.Request().Context(), inst.RegistrationID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ledgerOpResponse{Installment: inst, Transaction: txn})
}

func installmentID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid installment ID")
	}
	return uint(id), nil
}
