package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"inventra-api/internal/events"
	"inventra-api/internal/model"
	"inventra-api/internal/repository"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

const codeAttempts = 5

// ImageStore is satisfied by *storage.ImageStore
type ImageStore interface {
	Save(src io.Reader) (string, error)
	Remove(url string) error
}

type InventoryService interface {
	CreateProduct(ctx context.Context, req *CreateProductRequest, image io.Reader, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, req *UpdateProductRequest, image io.Reader, actor Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, code string, actor Actor) error
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, code string) (*model.Product, error)
	GetStockHistory(ctx context.Context, code string, limit int) ([]model.StockMovement, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*model.Category, error)
}

type CreateProductRequest struct {
	Name       string          `json:"name" validate:"required,max=255"`
	Price      decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity   int             `json:"quantity" validate:"gte=0"`
	CategoryID *uint           `json:"category_id"`
	ImageURL   string          `json:"image_url" validate:"omitempty,max=2048"`
}

// UpdateProductRequest changes only the fields that are set
type UpdateProductRequest struct {
	Code       string           `json:"code" validate:"required,product_code"`
	Name       *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Price      *decimal.Decimal `json:"price"`
	Quantity   *int             `json:"quantity" validate:"omitempty,gte=0"`
	CategoryID *uint            `json:"category_id"`
	ImageURL   *string          `json:"image_url" validate:"omitempty,max=2048"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type InventoryDeps struct {
	Tx         repository.TxManager
	Products   repository.ProductRepository
	Categories repository.CategoryRepository
	Movements  repository.StockMovementRepository
	Images     ImageStore
	Events     events.Publisher
	Timeout    time.Duration
	NewCode    func() string
}

type inventoryService struct {
	tx         repository.TxManager
	products   repository.ProductRepository
	categories repository.CategoryRepository
	movements  repository.StockMovementRepository
	images     ImageStore
	events     events.Publisher
	timeout    time.Duration
	newCode    func() string
}

func NewInventoryService(d InventoryDeps) InventoryService {
	s := &inventoryService{
		tx:         d.Tx,
		products:   d.Products,
		categories: d.Categories,
		movements:  d.Movements,
		images:     d.Images,
		events:     d.Events,
		timeout:    d.Timeout,
		newCode:    d.NewCode,
	}
	if s.events == nil {
		s.events = events.Noop{}
	}
	if s.newCode == nil {
		s.newCode = model.NewProductCode
	}
	return s
}

func (s *inventoryService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *inventoryService) saveImage(image io.Reader) (string, error) {
	if image == nil {
		return "", nil
	}
	if s.images == nil {
		return "", invalid("image uploads are not enabled")
	}
	url, err := s.images.Save(image)
	if err != nil {
		return "", &ValidationError{Msg: err.Error()}
	}
	return url, nil
}

func (s *inventoryService) dropImage(url string) {
	if s.images == nil || url == "" {
		return
	}
	if err := s.images.Remove(url); err != nil {
		log.Warnf("remove image %s: %v", url, err)
	}
}

func (s *inventoryService) checkCategory(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.FindByID(ctx, *id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	return nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, req *CreateProductRequest, image io.Reader, actor Actor) (*model.Product, error) {
	// 1. Validasi Struct Dasar
	if err := validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	// 2. Upload gambar sebelum transaksi; dibuang lagi kalau gagal
	imageURL := strings.TrimSpace(req.ImageURL)
	uploaded, err := s.saveImage(image)
	if err != nil {
		return nil, err
	}
	if uploaded != "" {
		imageURL = uploaded
	}

	product := &model.Product{
		Name:       strings.TrimSpace(req.Name),
		Price:      req.Price.Round(2),
		Quantity:   req.Quantity,
		CategoryID: req.CategoryID,
		ImageURL:   imageURL,
		Audit:      model.Audit{CreatedBy: actor.ID, UpdatedBy: actor.ID},
	}

	// 3. Generate SKU; a collision aborts the transaction, so retry the whole unit
	for attempt := 1; ; attempt++ {
		product.Code = s.newCode()

		err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			// a retried attempt must not reuse the id or timestamps of the rolled back insert
			product.ID = 0
			product.CreatedAt = time.Time{}
			product.UpdatedAt = time.Time{}

			if _, err := s.products.FindByCode(ctx, product.Code); err == nil {
				return repository.ErrDuplicate
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}

			if err := s.products.Create(ctx, product); err != nil {
				return err
			}
			if product.Quantity > 0 {
				return s.movements.Create(ctx, &model.StockMovement{
					ProductID: product.ID,
					Type:      model.MovementIn,
					Quantity:  product.Quantity,
					Reason:    model.ReasonInitialStock,
					CreatedBy: actor.ID,
				})
			}
			return nil
		})
		if err == nil || !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		if attempt == codeAttempts {
			err = ErrCodeExhausted
			break
		}
	}
	if err != nil {
		s.dropImage(uploaded)
		return nil, err
	}

	log.Infof("product %s created by %s", product.Code, actor.Email)
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:    events.StockUpdated,
		Action:  "product_created",
		Data:    productEventData(product, 0),
		User:    actorRef(actor),
		Message: fmt.Sprintf("%s created product '%s'", actorName(actor), product.Name),
	})
	return product, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, req *UpdateProductRequest, image io.Reader, actor Actor) (*model.Product, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, invalid("price must not be negative")
	}
	code := normalizeCode(req.Code)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	uploaded, err := s.saveImage(image)
	if err != nil {
		return nil, err
	}

	var (
		updated  model.Product
		oldStock int
		oldImage string
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// 1. Cari & Lock Product
		existing, err := s.products.FindByCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &ProductNotFoundError{Code: code}
			}
			return err
		}
		oldStock = existing.Quantity
		oldImage = existing.ImageURL

		// 2. Update fields yang dikirim saja
		if req.Name != nil {
			existing.Name = strings.TrimSpace(*req.Name)
		}
		if req.Price != nil {
			existing.Price = req.Price.Round(2)
		}
		if req.Quantity != nil {
			existing.Quantity = *req.Quantity
		}
		if req.CategoryID != nil {
			existing.CategoryID = req.CategoryID
		}
		if req.ImageURL != nil {
			existing.ImageURL = strings.TrimSpace(*req.ImageURL)
		}
		if uploaded != "" {
			existing.ImageURL = uploaded
		}
		existing.UpdatedBy = actor.ID

		if err := s.products.Update(ctx, existing); err != nil {
			return err
		}

		// 3. Catat selisih stok sebagai penyesuaian manual
		if delta := existing.Quantity - oldStock; delta != 0 {
			movement := &model.StockMovement{
				ProductID: existing.ID,
				Type:      model.MovementIn,
				Quantity:  delta,
				Reason:    model.ReasonManualAdjustment,
				CreatedBy: actor.ID,
			}
			if delta < 0 {
				movement.Type = model.MovementOut
				movement.Quantity = -delta
			}
			if err := s.movements.Create(ctx, movement); err != nil {
				return err
			}
		}

		updated = *existing
		return nil
	})
	if err != nil {
		s.dropImage(uploaded)
		return nil, err
	}
	if oldImage != "" && oldImage != updated.ImageURL {
		s.dropImage(oldImage)
	}

	log.Infof("product %s updated by %s", updated.Code, actor.Email)
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:    events.StockUpdated,
		Action:  "product_updated",
		Data:    productEventData(&updated, oldStock),
		User:    actorRef(actor),
		Message: fmt.Sprintf("%s updated product '%s'", actorName(actor), updated.Name),
	})
	return &updated, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, code string, actor Actor) error {
	code = normalizeCode(code)
	if code == "" {
		return invalid("product code is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var removed *model.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.FindByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if err := s.products.DeleteByCode(ctx, code); err != nil {
			return err
		}
		removed = p
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &ProductNotFoundError{Code: code}
	case errors.Is(err, repository.ErrReferenced):
		return ErrProductInUse
	case err != nil:
		return err
	}

	s.dropImage(removed.ImageURL)
	log.Infof("product %s deleted by %s", code, actor.Email)
	events.EmitWithin(ctx, s.timeout, s.events, events.Event{
		Type:    events.StockUpdated,
		Action:  "product_deleted",
		Data:    map[string]interface{}{"code": removed.Code, "name": removed.Name},
		User:    actorRef(actor),
		Message: fmt.Sprintf("%s deleted product '%s'", actorName(actor), removed.Name),
	})
	return nil
}

func (s *inventoryService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.products.FindAll(ctx)
}

func (s *inventoryService) GetProduct(ctx context.Context, code string) (*model.Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	code = normalizeCode(code)
	p, err := s.products.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ProductNotFoundError{Code: code}
	}
	return p, err
}

func (s *inventoryService) GetStockHistory(ctx context.Context, code string, limit int) ([]model.StockMovement, error) {
	p, err := s.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.movements.FindByProduct(ctx, p.ID, limit)
}

func (s *inventoryService) GetCategories(ctx context.Context) ([]model.Category, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.categories.FindAll(ctx)
}

func (s *inventoryService) CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*model.Category, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	category := &model.Category{Name: strings.TrimSpace(req.Name)}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func productEventData(p *model.Product, oldStock int) map[string]interface{} {
	return map[string]interface{}{
		"code":      p.Code,
		"name":      p.Name,
		"price":     p.Price,
		"old_stock": oldStock,
		"new_stock": p.Quantity,
	}
}
