package handler

import (
	"io"
	"strconv"
	"strings"

	"inventra-api/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 50

type InventoryHandler struct {
	service service.InventoryService
}

func NewInventoryHandler(s service.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: s}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// imageFrom opens the optional "image" form file. The caller closes it.
func imageFrom(c *fiber.Ctx) (io.ReadCloser, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, &service.ValidationError{Msg: "Invalid multipart form"}
	}
	files := form.File["image"]
	if len(files) == 0 {
		return nil, nil
	}
	return files[0].Open()
}

func formDecimal(c *fiber.Ctx, field string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &service.ValidationError{Msg: "Invalid " + field}
	}
	return &d, nil
}

func formInt(c *fiber.Ctx, field string) (*int, error) {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &service.ValidationError{Msg: "Invalid " + field}
	}
	return &n, nil
}

func formUint(c *fiber.Ctx, field string) (*uint, error) {
	n, err := formInt(c, field)
	if err != nil || n == nil {
		return nil, err
	}
	if *n <= 0 {
		return nil, &service.ValidationError{Msg: "Invalid " + field}
	}
	u := uint(*n)
	return &u, nil
}

// formString is nil when the field is absent, so an update leaves it alone
func formString(c *fiber.Ctx, field string) *string {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	if v, ok := form.Value[field]; ok && len(v) > 0 {
		return &v[0]
	}
	return nil
}

func parseCreateProduct(c *fiber.Ctx) (*service.CreateProductRequest, error) {
	var req service.CreateProductRequest
	if !isMultipart(c) {
		if err := c.BodyParser(&req); err != nil {
			return nil, &service.ValidationError{Msg: "Invalid JSON"}
		}
		return &req, nil
	}

	req.Name = c.FormValue("name")
	req.ImageURL = c.FormValue("image_url")
	price, err := formDecimal(c, "price")
	if err != nil {
		return nil, err
	}
	if price != nil {
		req.Price = *price
	}
	qty, err := formInt(c, "quantity")
	if err != nil {
		return nil, err
	}
	if qty != nil {
		req.Quantity = *qty
	}
	if req.CategoryID, err = formUint(c, "category_id"); err != nil {
		return nil, err
	}
	return &req, nil
}

func parseUpdateProduct(c *fiber.Ctx) (*service.UpdateProductRequest, error) {
	var req service.UpdateProductRequest
	if !isMultipart(c) {
		if err := c.BodyParser(&req); err != nil {
			return nil, &service.ValidationError{Msg: "Invalid JSON"}
		}
	} else {
		var err error
		req.Code = c.FormValue("code")
		req.Name = formString(c, "name")
		req.ImageURL = formString(c, "image_url")
		if req.Price, err = formDecimal(c, "price"); err != nil {
			return nil, err
		}
		if req.Quantity, err = formInt(c, "quantity"); err != nil {
			return nil, err
		}
		if req.CategoryID, err = formUint(c, "category_id"); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, &service.ValidationError{Msg: "Missing required field: code"}
	}
	return &req, nil
}

// CreateProduct accepts JSON or multipart with an optional "image" file
// POST /api/v1/products
func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	req, err := parseCreateProduct(c)
	if err != nil {
		return respondError(c, err)
	}
	image, err := imageFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	if image != nil {
		defer image.Close()
	}

	product, err := h.service.CreateProduct(c.UserContext(), req, image, actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product added successfully", "data": product})
}

// UpdateProduct changes the fields present in the body; code identifies the product
// PUT /api/v1/products
func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	req, err := parseUpdateProduct(c)
	if err != nil {
		return respondError(c, err)
	}
	image, err := imageFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	if image != nil {
		defer image.Close()
	}

	product, err := h.service.UpdateProduct(c.UserContext(), req, image, actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated successfully", "data": product})
}

// DeleteProduct removes a product that no order references
// DELETE /api/v1/products/:code
func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	code := c.Params("code")
	if err := h.service.DeleteProduct(c.UserContext(), code, actorFrom(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

// GetStockHistory returns the newest ledger rows for a product
// GET /api/v1/products/:code/movements?limit=50
func (h *InventoryHandler) GetStockHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	history, err := h.service.GetStockHistory(c.UserContext(), c.Params("code"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": history})
}

func (h *InventoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.service.GetCategories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(categories)
}

func (h *InventoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req service.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	category, err := h.service.CreateCategory(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Category created", "data": category})
}
