package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

type SlotHandler struct {
	slotService SlotServiceInterface
}

func NewSlotHandler(slotService SlotServiceInterface) *SlotHandler {
	return &SlotHandler{slotService: slotService}
}

// SetCapacityRequest の capacity は 0 を許すためポインタで受ける
type SetCapacityRequest struct {
	Capacity *int `json:"capacity" validate:"required,gte=0" example:"30"`
}

type SlotResponse struct {
	ProductID     string  `json:"product_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Date          string  `json:"date" example:"2025-07-01"`
	TotalCapacity int     `json:"total_capacity" example:"20"`
	ReservedCount int     `json:"reserved_count" example:"5"`
	Remaining     int     `json:"remaining" example:"15"`
	Utilization   float64 `json:"utilization" example:"0.25"`
}

func toSlotResponse(s *slot.Slot) *SlotResponse {
	return &SlotResponse{
		ProductID:     s.ProductID,
		Date:          slot.FormatDate(s.Date),
		TotalCapacity: s.TotalCapacity,
		ReservedCount: s.ReservedCount,
		Remaining:     s.Remaining(),
		Utilization:   s.Utilization(),
	}
}

// Get godoc
// @Summary 枠を取得
// @Description 指定日の枠を返します。未作成の日は商品の既定定員で作成されます
// @Tags slots
// @Produce json
// @Param id path string true "商品ID"
// @Param date path string true "日付 (YYYY-MM-DD)"
// @Success 200 {object} SlotResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /products/{id}/slots/{date} [get]
func (h *SlotHandler) Get(c echo.Context) error {
	date, err := slot.ParseDate(c.Param("date"))
	if err != nil {
		return toHTTPError(err)
	}
	s, err := h.slotService.GetSlot(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toSlotResponse(s))
}

// SetCapacity godoc
// @Summary 枠の定員を変更
// @Description 予約済み数を下回る定員は 409 になります
// @Tags slots
// @Accept json
// @Produce json
// @Param id path string true "商品ID"
// @Param date path string true "日付 (YYYY-MM-DD)"
// @Param request body SetCapacityRequest true "定員"
// @Success 200 {object} SlotResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /products/{id}/slots/{date}/capacity [put]
func (h *SlotHandler) SetCapacity(c echo.Context) error {
	date, err := slot.ParseDate(c.Param("date"))
	if err != nil {
		return toHTTPError(err)
	}
	var req SetCapacityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	s, err := h.slotService.SetCapacity(c.Request().Context(), c.Param("id"), date, *req.Capacity)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toSlotResponse(s))
}
