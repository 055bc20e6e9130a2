package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/application"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

type HoldHandler struct {
	holdService HoldServiceInterface
}

func NewHoldHandler(holdService HoldServiceInterface) *HoldHandler {
	return &HoldHandler{holdService: holdService}
}

type CreateHoldRequest struct {
	ProductID string `json:"product_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Date      string `json:"date" validate:"required,calendar_date" example:"2025-07-01"`
	Quantity  int    `json:"quantity" validate:"required,gt=0" example:"2"`
}

type HoldResponse struct {
	ID          string  `json:"id"`
	BookingID   string  `json:"booking_id,omitempty"`
	ProductID   string  `json:"product_id"`
	Date        string  `json:"date" example:"2025-07-01"`
	Quantity    int     `json:"quantity" example:"2"`
	Status      string  `json:"status" example:"active"`
	ExpiresAt   string  `json:"expires_at"`
	ReleasedAt  *string `json:"released_at,omitempty"`
	ConfirmedAt *string `json:"confirmed_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type ReleaseResponse struct {
	HoldID   string `json:"hold_id"`
	Released bool   `json:"released"`
}

func toHoldResponse(h *hold.Hold) *HoldResponse {
	return &HoldResponse{
		ID:          h.ID,
		BookingID:   h.BookingID,
		ProductID:   h.ProductID,
		Date:        slot.FormatDate(h.Date),
		Quantity:    h.Quantity,
		Status:      string(h.Status),
		ExpiresAt:   h.ExpiresAt.Format(time.RFC3339),
		ReleasedAt:  formatTimePtr(h.ReleasedAt),
		ConfirmedAt: formatTimePtr(h.ConfirmedAt),
		CreatedAt:   h.CreatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// Create godoc
// @Summary 仮押さえを作成
// @Description 枠から指定人数分の定員を確保します。残り定員が足りない場合は 409 になります
// @Tags holds
// @Accept json
// @Produce json
// @Param request body CreateHoldRequest true "仮押さえ情報"
// @Success 201 {object} HoldResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /holds [post]
func (h *HoldHandler) Create(c echo.Context) error {
	var req CreateHoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := slot.ParseDate(req.Date)
	if err != nil {
		return toHTTPError(err)
	}

	held, err := h.holdService.Reserve(c.Request().Context(), application.ReserveInput{
		ProductID: req.ProductID,
		Date:      date,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toHoldResponse(held))
}

// GetByID godoc
// @Summary 仮押さえを取得
// @Tags holds
// @Produce json
// @Param id path string true "仮押さえID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /holds/{id} [get]
func (h *HoldHandler) GetByID(c echo.Context) error {
	held, err := h.holdService.GetHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(held))
}

// Release godoc
// @Summary 仮押さえを解放
// @Description 有効な仮押さえの定員を枠に戻します。解放済み・確定済みの場合は released=false を返します
// @Tags holds
// @Produce json
// @Param id path string true "仮押さえID"
// @Success 200 {object} ReleaseResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /holds/{id}/release [post]
func (h *HoldHandler) Release(c echo.Context) error {
	id := c.Param("id")
	released, err := h.holdService.Release(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ReleaseResponse{HoldID: id, Released: released})
}

// Confirm godoc
// @Summary 仮押さえを確定
// @Description 有効期限内の仮押さえを確定し、定員を恒久的に消費します
// @Tags holds
// @Produce json
// @Param id path string true "仮押さえID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /holds/{id}/confirm [post]
func (h *HoldHandler) Confirm(c echo.Context) error {
	held, err := h.holdService.Confirm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(held))
}
