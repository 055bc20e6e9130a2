package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
// エラーメッセージのフィールド名には JSON タグ名を使う
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// calendar_date は YYYY-MM-DD 形式の日付文字列
	_ = v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		_, err := slot.ParseDate(fl.Field().String())
		return err == nil
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", field)
	case "calendar_date":
		return fmt.Sprintf("%s はYYYY-MM-DD形式である必要があります", field)
	case "gt", "gte", "min":
		return fmt.Sprintf("%s は%s以上である必要があります", field, boundary(fe))
	case "lte", "max":
		return fmt.Sprintf("%s は%s以下である必要があります", field, boundary(fe))
	case "oneof":
		return fmt.Sprintf("%s は [%s] のいずれかである必要があります", field, fe.Param())
	default:
		return fmt.Sprintf("%s が不正です（%s）", field, fe.Tag())
	}
}

// boundary は gt の場合だけ境界値を1つずらして「以上」で表現する
func boundary(fe validator.FieldError) string {
	if fe.Tag() == "gt" && fe.Param() == "0" {
		return "1"
	}
	return fe.Param()
}
