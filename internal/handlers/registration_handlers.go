package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"eventpay/internal/models"
	"eventpay/internal/services"
)

type RegistrationHandler struct {
	db      *gorm.DB
	ledger  *services.LedgerService
	lateFee *services.LateFeeRecalculator
}

func NewRegistrationHandler(db *gorm.DB, ledger *services.LedgerService, lateFee *services.LateFeeRecalculator) *RegistrationHandler {
	return &RegistrationHandler{db: db, ledger: ledger, lateFee: lateFee}
}

type createRegistrationRequest struct {
	TicketID      uint   `json:"ticket_id" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	PaymentPlanID *uint  `json:"payment_plan_id"`
}

// CreateRegistration registers a customer for an event ticket. When a
// payment plan is given (or the event has a default one), the installment
// schedule is generated immediately.
func (h *RegistrationHandler) CreateRegistration(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event ID")
	}

	var req createRegistrationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var ticket models.Ticket
	if err := h.db.First(&ticket, req.TicketID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "ticket not found")
	}
	if ticket.EventID != uint(eventID) {
		return echo.NewHTTPError(http.StatusBadRequest, "ticket does not belong to event")
	}

	reg := models.Registration{
		UUID:            uuid.New().String(),
		EventID:         uint(eventID),
		TicketID:        ticket.ID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Status:          models.RegistrationStatusPending,
		TotalAmount:     ticket.Price,
		RemainingAmount: ticket.Price,
		PaymentStatus:   models.PaymentStatusPending,
	}
	if err := h.db.Create(&reg).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create registration")
	}

	planID := req.PaymentPlanID
	if planID == nil {
		var def models.PaymentPlan
		if err := h.db.Where("event_id = ? AND is_default = ?", eventID, true).First(&def).Error; err == nil {
			planID = &def.ID
		}
	}
	if planID != nil {
		if _, err := h.ledger.EnrollRegistration(c.Request().Context(), reg.ID, *planID); err != nil {
			return err
		}
	}

	var out models.Registration
	if err := h.db.Preload("Installments").First(&out, reg.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reload registration")
	}
	return c.JSON(http.StatusCreated, out)
}

type enrollRequest struct {
	PaymentPlanID uint `json:"payment_plan_id" validate:"required"`
}

// Enroll generates the installment schedule for an existing registration
func (h *RegistrationHandler) Enroll(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid registration ID")
	}

	var req enrollRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	installments, err := h.ledger.EnrollRegistration(c.Request().Context(), uint(id), req.PaymentPlanID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, installments)
}

// GetRegistration returns a registration with its installment schedule
func (h *RegistrationHandler) GetRegistration(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid registration ID")
	}

	var reg models.Registration
	if err := h.db.
		Preload("Installments").
		Preload("Installments.Transactions").
		First(&reg, id).Error; err != nil {
		return services.ErrNotFound
	}
	return c.JSON(http.StatusOK, reg)
}

type sweepRequest struct {
	EventID *uint `json:"event_id"`
}

// RunLateFeeSweep triggers the late fee recalculation on demand,
// optionally scoped to one event. The same sweep also runs nightly from
// the worker; both paths are idempotent.
func (h *RegistrationHandler) RunLateFeeSweep(c echo.Context) error {
	var req sweepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.lateFee.Run(c.Request().Context(), req.EventID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ListReviewQueue returns webhook events that failed after their dedupe
// record was written and need manual reconciliation
func (h *RegistrationHandler) ListReviewQueue(c echo.Context) error {
	var events []models.WebhookEvent
	if err := h.db.
		Where("status = ?", models.WebhookEventStatusNeedsReview).
		Order("created_at asc").
		Find(&events).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch review queue")
	}
	return c.JSON(http.StatusOK, events)
}
