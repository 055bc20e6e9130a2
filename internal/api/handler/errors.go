package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/hold"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

const internalErrorMessage = "内部サーバーエラー"

var (
	notFoundErrors = []error{
		product.ErrProductNotFound,
		slot.ErrSlotNotFound,
		hold.ErrHoldNotFound,
		booking.ErrBookingNotFound,
	}
	conflictErrors = []error{
		slot.ErrInsufficientCapacity,
		slot.ErrInvalidCapacity,
		hold.ErrHoldExpired,
		hold.ErrHoldNotActive,
		hold.ErrHoldOwnedByBooking,
		booking.ErrBookingNotPending,
		booking.ErrBookingNotConfirmed,
		booking.ErrBookingAlreadyConfirmed,
		booking.ErrBookingNotCancellable,
		booking.ErrInvalidPaymentTransition,
		booking.ErrIdempotencyKeyAlreadyExists,
	}
	badRequestErrors = []error{
		slot.ErrInvalidQuantity,
		slot.ErrInvalidDate,
		slot.ErrInvalidDateRange,
		slot.ErrProductIDRequired,
		hold.ErrInvalidQuantity,
		hold.ErrProductIDRequired,
		product.ErrProductNameRequired,
		product.ErrInvalidPrice,
		product.ErrInvalidDefaultCapacity,
		booking.ErrUserIDRequired,
		booking.ErrItemsRequired,
		booking.ErrProductIDRequired,
		booking.ErrInvalidQuantity,
		booking.ErrIdempotencyKeyRequired,
		booking.ErrInvalidPaymentStatus,
	}
)

// toHTTPError はサービス層のエラーをHTTPエラーに変換する
// 想定外のエラーは詳細を隠して500にし、元のエラーは Internal に残す（エラーハンドラーがログに出す）
func toHTTPError(err error) error {
	switch {
	case isAny(err, notFoundErrors):
		return echo.NewHTTPError(http.StatusNotFound, rootMessage(err, notFoundErrors))
	case isAny(err, conflictErrors):
		return echo.NewHTTPError(http.StatusConflict, rootMessage(err, conflictErrors))
	case isAny(err, badRequestErrors):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, internalErrorMessage).SetInternal(err)
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// rootMessage はラップされたエラーから該当するドメインエラーのメッセージを取り出す
func rootMessage(err error, targets []error) string {
	for _, t := range targets {
		if errors.Is(err, t) {
			return t.Error()
		}
	}
	return err.Error()
}
