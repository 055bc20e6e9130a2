package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/application"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

type BookingHandler struct {
	bookingService BookingServiceInterface
}

func NewBookingHandler(bookingService BookingServiceInterface) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

type BookingItemRequest struct {
	ProductID string `json:"product_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Date      string `json:"date" validate:"required,calendar_date" example:"2025-07-01"`
	Quantity  int    `json:"quantity" validate:"required,gt=0" example:"2"`
}

type CreateBookingRequest struct {
	Items          []BookingItemRequest `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string               `json:"idempotency_key" validate:"required,max=128" example:"order-20250601-0001"`
}

type PaymentRequest struct {
	Status string `json:"status" validate:"required,oneof=processing completed failed" example:"completed"`
}

type BookingItemResponse struct {
	ProductID string `json:"product_id"`
	Date      string `json:"date" example:"2025-07-01"`
	Quantity  int    `json:"quantity" example:"2"`
	UnitPrice int    `json:"unit_price" example:"6000"`
	Subtotal  int    `json:"subtotal" example:"12000"`
	HoldID    string `json:"hold_id,omitempty"`
}

type BookingResponse struct {
	ID               string                `json:"id"`
	UserID           string                `json:"user_id"`
	Items            []BookingItemResponse `json:"items"`
	Status           string                `json:"status" example:"pending"`
	PaymentStatus    string                `json:"payment_status" example:"pending"`
	TotalPrice       int                   `json:"total_price" example:"12000"`
	ConfirmationCode string                `json:"confirmation_code" example:"TR-1A2B3C4D5E"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
	ConfirmedAt      *string               `json:"confirmed_at,omitempty"`
	CancelledAt      *string               `json:"cancelled_at,omitempty"`
	CompletedAt      *string               `json:"completed_at,omitempty"`
	CreatedAt        string                `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) *BookingResponse {
	items := make([]BookingItemResponse, len(b.Items))
	for i, it := range b.Items {
		items[i] = BookingItemResponse{
			ProductID: it.ProductID,
			Date:      slot.FormatDate(it.Date),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
			HoldID:    it.HoldID,
		}
	}
	return &BookingResponse{
		ID:               b.ID,
		UserID:           b.UserID,
		Items:            items,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		TotalPrice:       b.TotalPrice,
		ConfirmationCode: b.ConfirmationCode,
		CancelReason:     string(b.CancelReason),
		ConfirmedAt:      formatTimePtr(b.ConfirmedAt),
		CancelledAt:      formatTimePtr(b.CancelledAt),
		CompletedAt:      formatTimePtr(b.CompletedAt),
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}

func requireUserID(c echo.Context) (string, error) {
	userID := c.Request().Header.Get(middleware.HeaderUserID)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	return userID, nil
}

// Create godoc
// @Summary 予約を作成
// @Description 全明細の定員を1トランザクションで仮押さえし、保留中の予約を作成します。
// @Description 同じ idempotency_key での再送は既存の予約を返します
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	items := make([]application.BookingItemInput, len(req.Items))
	for i, it := range req.Items {
		date, err := slot.ParseDate(it.Date)
		if err != nil {
			return toHTTPError(err)
		}
		items[i] = application.BookingItemInput{ProductID: it.ProductID, Date: date, Quantity: it.Quantity}
	}

	b, err := h.bookingService.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		UserID:         userID,
		Items:          items,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	b, err := h.bookingService.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetByConfirmationCode godoc
// @Summary 確認コードで予約を取得
// @Tags bookings
// @Produce json
// @Param code path string true "確認コード"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/code/{code} [get]
func (h *BookingHandler) GetByConfirmationCode(c echo.Context) error {
	b, err := h.bookingService.GetBookingByConfirmationCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetUserBookings godoc
// @Summary ユーザーの予約一覧を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /bookings [get]
func (h *BookingHandler) GetUserBookings(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	bookings, err := h.bookingService.GetUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]*BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// RecordPayment godoc
// @Summary 支払い状況を記録
// @Description completed で予約確定、failed で予約キャンセル（仮押さえ解放）になります
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body PaymentRequest true "支払い状況"
// @Success 200 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings/{id}/payment [post]
func (h *BookingHandler) RecordPayment(c echo.Context) error {
	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.bookingService.RecordPayment(c.Request().Context(), c.Param("id"), booking.PaymentStatus(req.Status))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Confirm godoc
// @Summary 予約を確定
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c echo.Context) error {
	b, err := h.bookingService.ConfirmBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 保留中の予約をキャンセルし、仮押さえを解放します。キャンセル済みの予約はそのまま返します
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.bookingService.CancelBooking(c.Request().Context(), c.Param("id"), booking.ReasonUserCancelled)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Complete godoc
// @Summary 予約を完了にする
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c echo.Context) error {
	b, err := h.bookingService.CompleteBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Voucher godoc
// @Summary 予約確認書（PDF）を取得
// @Tags bookings
// @Produce application/pdf
// @Param id path string true "予約ID"
// @Success 200 {file} binary
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /bookings/{id}/voucher [get]
func (h *BookingHandler) Voucher(c echo.Context) error {
	b, pdf, err := h.bookingService.RenderVoucher(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="voucher-%s.pdf"`, b.ConfirmationCode))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
