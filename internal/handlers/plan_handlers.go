package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"eventpay/internal/models"
	"eventpay/internal/services"
)

type PlanHandler struct {
	db *gorm.DB
}

func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

type createPlanRequest struct {
	Name                 string  `json:"name" validate:"required"`
	InstallmentCount     int     `json:"installment_count" validate:"required,gte=1"`
	InstallmentInterval  string  `json:"installment_interval" validate:"required,oneof=weekly biweekly monthly"`
	FirstInstallmentDate *string `json:"first_installment_date"`
	IsDefault            bool    `json:"is_default"`

	EarlyPaymentDiscountPct float64 `json:"early_payment_discount_pct" validate:"gte=0,lte=100"`
	EarlyPaymentDays        int     `json:"early_payment_days" validate:"gte=0"`

	LateFeeEnabled      bool    `json:"late_fee_enabled"`
	GracePeriodDays     int     `json:"grace_period_days" validate:"gte=0"`
	FixedLateFee        float64 `json:"fixed_late_fee" validate:"gte=0"`
	MonthlyInterestRate float64 `json:"monthly_interest_rate" validate:"gte=0"`
	MaxLateFee          float64 `json:"max_late_fee" validate:"gte=0"`
}

// CreatePlan creates a payment plan for an event. At most one plan per
// event is the default: marking this one default demotes any other.
func (h *PlanHandler) CreatePlan(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event ID")
	}

	var req createPlanRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var event models.Event
	if err := h.db.First(&event, eventID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}

	var firstDate *time.Time
	if req.FirstInstallmentDate != nil && *req.FirstInstallmentDate != "" {
		parsed, err := time.Parse("2006-01-02", *req.FirstInstallmentDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid first_installment_date, want YYYY-MM-DD")
		}
		firstDate = &parsed
	}

	plan := models.PaymentPlan{
		EventID:              event.ID,
		Name:                 req.Name,
		InstallmentCount:     req.InstallmentCount,
		InstallmentInterval:  models.InstallmentInterval(req.InstallmentInterval),
		FirstInstallmentDate: firstDate,
		IsDefault:            req.IsDefault,

		EarlyPaymentDiscountPct: req.EarlyPaymentDiscountPct,
		EarlyPaymentDays:        req.EarlyPaymentDays,

		LateFeeEnabled:      req.LateFeeEnabled,
		GracePeriodDays:     req.GracePeriodDays,
		FixedLateFee:        req.FixedLateFee,
		MonthlyInterestRate: req.MonthlyInterestRate,
		MaxLateFee:          req.MaxLateFee,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := tx.Model(&models.PaymentPlan{}).
				Where("event_id = ? AND is_default = ?", event.ID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&plan).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create plan")
	}

	return c.JSON(http.StatusCreated, plan)
}

// ListPlans returns the payment plans of an event
func (h *PlanHandler) ListPlans(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event ID")
	}

	var plans []models.PaymentPlan
	if err := h.db.Where("event_id = ?", eventID).Find(&plans).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch plans")
	}
	return c.JSON(http.StatusOK, plans)
}

// GetPlan returns one payment plan
func (h *PlanHandler) GetPlan(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid plan ID")
	}

	var plan models.PaymentPlan
	if err := h.db.First(&plan, id).Error; err != nil {
		return services.ErrNotFound
	}
	return c.JSON(http.StatusOK, plan)
}
