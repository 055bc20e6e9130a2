package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/metrics"
)

// HeaderUserID は利用者を識別するヘッダー（認証は上流で行う）
const HeaderUserID = "X-User-ID"

// SetupMiddleware は共通ミドルウェアを設定する
// m が nil の場合は HTTP メトリクスを収集しない
func SetupMiddleware(e *echo.Echo, m *metrics.Metrics) {
	e.Use(RequestIDMiddleware())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	if m != nil {
		e.Use(PrometheusMiddleware(m))
	}

	// 予約リクエストは小さい JSON のみ
	e.Use(middleware.BodyLimit("1M"))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestID,
			HeaderUserID,
		},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))
}
