package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/application"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
)

type ProductHandler struct {
	productService ProductServiceInterface
}

func NewProductHandler(productService ProductServiceInterface) *ProductHandler {
	return &ProductHandler{productService: productService}
}

type CreateProductRequest struct {
	Name            string `json:"name" validate:"required,max=200" example:"嵐山サイクリングツアー"`
	Description     string `json:"description" validate:"max=2000" example:"竹林と渡月橋を巡る半日ツアー"`
	Location        string `json:"location" validate:"max=200" example:"京都"`
	Price           int    `json:"price" validate:"gte=0" example:"6000"`
	DefaultCapacity int    `json:"default_capacity" validate:"gte=0" example:"20"`
}

type ProductResponse struct {
	ID              string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name            string `json:"name" example:"嵐山サイクリングツアー"`
	Description     string `json:"description" example:"竹林と渡月橋を巡る半日ツアー"`
	Location        string `json:"location" example:"京都"`
	Price           int    `json:"price" example:"6000"`
	DefaultCapacity int    `json:"default_capacity" example:"20"`
	CreatedAt       string `json:"created_at" example:"2025-06-01T10:00:00+09:00"`
	UpdatedAt       string `json:"updated_at" example:"2025-06-01T10:00:00+09:00"`
}

func toProductResponse(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Location:        p.Location,
		Price:           p.Price,
		DefaultCapacity: p.DefaultCapacity,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
}

// Create godoc
// @Summary ツアー商品を作成
// @Description 新しいツアー商品を作成します。default_capacity を省略すると既定値を使います
// @Tags products
// @Accept json
// @Produce json
// @Param request body CreateProductRequest true "商品情報"
// @Success 201 {object} ProductResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	var req CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p, err := h.productService.CreateProduct(c.Request().Context(), application.CreateProductInput{
		Name:            req.Name,
		Description:     req.Description,
		Location:        req.Location,
		Price:           req.Price,
		DefaultCapacity: req.DefaultCapacity,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toProductResponse(p))
}

// GetByID godoc
// @Summary ツアー商品を取得
// @Tags products
// @Produce json
// @Param id path string true "商品ID"
// @Success 200 {object} ProductResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductHandler) GetByID(c echo.Context) error {
	p, err := h.productService.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toProductResponse(p))
}

// List godoc
// @Summary ツアー商品一覧を取得
// @Tags products
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ProductResponse
// @Router /products [get]
func (h *ProductHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	products, err := h.productService.ListProducts(c.Request().Context(), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]*ProductResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	return c.JSON(http.StatusOK, resp)
}
