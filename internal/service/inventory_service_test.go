package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"inventra-api/internal/events"
	"inventra-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImages struct {
	saved   []string
	removed []string
	err     error
}

func (f *fakeImages) Save(src io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(src); err != nil {
		return "", err
	}
	url := "/uploads/img" + string(rune('0'+len(f.saved))) + ".png"
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeImages) Remove(url string) error {
	f.removed = append(f.removed, url)
	return nil
}

type inventoryFixture struct {
	store  *memStore
	svc    InventoryService
	images *fakeImages
	events *recordingPublisher
	codes  []string
}

func newInventoryFixture(t *testing.T, codes ...string) *inventoryFixture {
	t.Helper()
	f := &inventoryFixture{
		store:  newMemStore(),
		images: &fakeImages{},
		events: &recordingPublisher{},
		codes:  codes,
	}
	var next int
	newCode := func() string {
		if next < len(f.codes) {
			next++
			return f.codes[next-1]
		}
		return model.NewProductCode()
	}
	f.svc = NewInventoryService(InventoryDeps{
		Tx:         memTx{f.store},
		Products:   memProducts{f.store},
		Categories: memCategories{f.store},
		Movements:  memMovements{f.store},
		Images:     f.images,
		Events:     f.events,
		NewCode:    newCode,
	})
	return f
}

func TestCreateProduct_RecordsInitialStock(t *testing.T) {
	f := newInventoryFixture(t, "A1B2C3D4")

	p, err := f.svc.CreateProduct(context.Background(), &CreateProductRequest{
		Name:     " Widget ",
		Price:    decimal.RequireFromString("10.005"),
		Quantity: 5,
	}, strings.NewReader("png-bytes"), testActor)
	require.NoError(t, err)

	assert.Equal(t, "A1B2C3D4", p.Code)
	assert.Equal(t, "Widget", p.Name)
	assert.Equal(t, "10.01", p.Price.StringFixed(2))
	assert.Equal(t, "/uploads/img0.png", p.ImageURL)
	assert.Equal(t, testActor.ID, p.CreatedBy)

	moves := f.store.movementsOf(p.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, model.ReasonInitialStock, moves[0].Reason)
	assert.Equal(t, 5, moves[0].Quantity)
	assert.Equal(t, []string{events.StockUpdated}, f.events.types())
}

func TestCreateProduct_RetriesCodeCollision(t *testing.T) {
	f := newInventoryFixture(t, "TAKEN001", "TAKEN001", "FRESH002")
	f.store.seed("TAKEN001", "Existing", "1.00", 1)

	p, err := f.svc.CreateProduct(context.Background(), &CreateProductRequest{Name: "New", Price: decimal.NewFromInt(2)}, nil, testActor)
	require.NoError(t, err)
	assert.Equal(t, "FRESH002", p.Code)
	// zero stock writes no ledger row
	assert.Empty(t, f.store.movementsOf(p.ID))
}

func TestCreateProduct_CodeExhausted(t *testing.T) {
	f := newInventoryFixture(t, "TAKEN001", "TAKEN001", "TAKEN001", "TAKEN001", "TAKEN001")
	f.store.seed("TAKEN001", "Existing", "1.00", 1)

	_, err := f.svc.CreateProduct(context.Background(), &CreateProductRequest{Name: "New", Price: decimal.NewFromInt(2)}, strings.NewReader("x"), testActor)
	assert.ErrorIs(t, err, ErrCodeExhausted)
	assert.Equal(t, []string{"/uploads/img0.png"}, f.images.removed)
}

func TestCreateProduct_Validation(t *testing.T) {
	f := newInventoryFixture(t)
	missing := uint(99)

	tests := []struct {
		name string
		req  *CreateProductRequest
		want error
	}{
		{"missing name", &CreateProductRequest{Price: decimal.NewFromInt(1)}, nil},
		{"negative price", &CreateProductRequest{Name: "X", Price: decimal.NewFromInt(-1)}, nil},
		{"negative quantity", &CreateProductRequest{Name: "X", Price: decimal.NewFromInt(1), Quantity: -1}, nil},
		{"unknown category", &CreateProductRequest{Name: "X", Price: decimal.NewFromInt(1), CategoryID: &missing}, ErrCategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateProduct(context.Background(), tt.req, nil, testActor)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestCreateProduct_RejectedImage(t *testing.T) {
	f := newInventoryFixture(t)
	f.images.err = errors.New("unsupported image type")

	_, err := f.svc.CreateProduct(context.Background(), &CreateProductRequest{Name: "X", Price: decimal.NewFromInt(1)}, strings.NewReader("%PDF"), testActor)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "unsupported image type")
}

func TestUpdateProduct_AdjustsStockAndImage(t *testing.T) {
	f := newInventoryFixture(t)
	seeded := f.store.seed("A1B2C3D4", "Widget", "10.00", 5)
	f.store.mu.Lock()
	p := f.store.products[seeded.ID]
	p.ImageURL = "/uploads/old.png"
	f.store.products[seeded.ID] = p
	f.store.mu.Unlock()

	qty := 2
	price := decimal.RequireFromString("12.5")
	updated, err := f.svc.UpdateProduct(context.Background(), &UpdateProductRequest{
		Code:     "a1b2c3d4",
		Quantity: &qty,
		Price:    &price,
	}, strings.NewReader("new"), testActor)
	require.NoError(t, err)

	assert.Equal(t, "Widget", updated.Name)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, "12.50", updated.Price.StringFixed(2))
	assert.Equal(t, "/uploads/img0.png", updated.ImageURL)
	assert.Equal(t, []string{"/uploads/old.png"}, f.images.removed)

	moves := f.store.movementsOf(seeded.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, model.MovementOut, moves[0].Type)
	assert.Equal(t, 3, moves[0].Quantity)
	assert.Equal(t, model.ReasonManualAdjustment, moves[0].Reason)

	evt := f.events.events[0]
	data := evt.Data.(map[string]interface{})
	assert.Equal(t, 5, data["old_stock"])
	assert.Equal(t, 2, data["new_stock"])
}

func TestUpdateProduct_NotFoundDropsUpload(t *testing.T) {
	f := newInventoryFixture(t)
	name := "Renamed"

	_, err := f.svc.UpdateProduct(context.Background(), &UpdateProductRequest{Code: "NOPE0000", Name: &name}, strings.NewReader("img"), testActor)
	var nf *ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "NOPE0000", nf.Code)
	assert.Equal(t, []string{"/uploads/img0.png"}, f.images.removed)
}

func TestUpdateProduct_NegativePrice(t *testing.T) {
	f := newInventoryFixture(t)
	f.store.seed("A1B2C3D4", "Widget", "10.00", 5)
	price := decimal.NewFromInt(-3)

	_, err := f.svc.UpdateProduct(context.Background(), &UpdateProductRequest{Code: "A1B2C3D4", Price: &price}, nil, testActor)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestCreateProduct_RetriedUnitGetsFreshID(t *testing.T) {
	store := newMemStore()
	svc := NewInventoryService(InventoryDeps{
		Tx:         retryingTx{memTx{store}},
		Products:   memProducts{store},
		Categories: memCategories{store},
		Movements:  memMovements{store},
		NewCode:    func() string { return "A1B2C3D4" },
	})
	store.failOnce("movements.Create", errSerialization)

	p, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		Name:     "Widget",
		Price:    decimal.RequireFromString("10"),
		Quantity: 4,
	}, nil, testActor)
	require.NoError(t, err)

	assert.Equal(t, 4, store.quantity("A1B2C3D4"))
	moves := store.movementsOf(p.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, model.ReasonInitialStock, moves[0].Reason)
}

func TestUpdateProduct_MalformedCode(t *testing.T) {
	f := newInventoryFixture(t)
	f.store.seed("A1B2C3D4", "Widget", "10.00", 5)
	qty := 1

	_, err := f.svc.UpdateProduct(context.Background(), &UpdateProductRequest{Code: "A1B2'--", Quantity: &qty}, nil, testActor)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Msg, "product_code")

	// lower-case SKUs are accepted and resolve to the stored code
	updated, err := f.svc.UpdateProduct(context.Background(), &UpdateProductRequest{Code: "a1b2c3d4", Quantity: &qty}, nil, testActor)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Quantity)
}

func TestDeleteProduct(t *testing.T) {
	f := newInventoryFixture(t)
	f.store.seed("A1B2C3D4", "Widget", "10.00", 5)
	used := f.store.seed("B2C3D4E5", "Gadget", "1.00", 5)
	f.store.items = append(f.store.items, model.OrderItem{ID: 900, OrderID: 1, ProductID: used.ID, Quantity: 1})

	require.NoError(t, f.svc.DeleteProduct(context.Background(), "A1B2C3D4", testActor))
	_, err := f.svc.GetProduct(context.Background(), "A1B2C3D4")
	assert.ErrorIs(t, err, ErrProductNotFound)

	err = f.svc.DeleteProduct(context.Background(), "B2C3D4E5", testActor)
	assert.ErrorIs(t, err, ErrProductInUse)
	assert.Equal(t, 5, f.store.quantity("B2C3D4E5"))

	err = f.svc.DeleteProduct(context.Background(), "A1B2C3D4", testActor)
	assert.ErrorIs(t, err, ErrProductNotFound)

	err = f.svc.DeleteProduct(context.Background(), " ", testActor)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestGetStockHistory(t *testing.T) {
	f := newInventoryFixture(t, "A1B2C3D4")
	p, err := f.svc.CreateProduct(context.Background(), &CreateProductRequest{Name: "Widget", Price: decimal.NewFromInt(1), Quantity: 4}, nil, testActor)
	require.NoError(t, err)
	qty := 9
	_, err = f.svc.UpdateProduct(context.Background(), &UpdateProductRequest{Code: p.Code, Quantity: &qty}, nil, testActor)
	require.NoError(t, err)

	history, err := f.svc.GetStockHistory(context.Background(), "a1b2c3d4", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ReasonManualAdjustment, history[0].Reason)
	assert.Equal(t, model.MovementIn, history[0].Type)
	assert.Equal(t, 5, history[0].Quantity)

	_, err = f.svc.GetStockHistory(context.Background(), "NOPE0000", 10)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCategories(t *testing.T) {
	f := newInventoryFixture(t)

	c, err := f.svc.CreateCategory(context.Background(), &CreateCategoryRequest{Name: " Snacks "})
	require.NoError(t, err)
	assert.Equal(t, "Snacks", c.Name)

	_, err = f.svc.CreateCategory(context.Background(), &CreateCategoryRequest{})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	all, err := f.svc.GetCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	p, err := f.svc.CreateProduct(context.Background(), &CreateProductRequest{Name: "Chips", Price: decimal.NewFromInt(1), CategoryID: &c.ID}, nil, testActor)
	require.NoError(t, err)
	assert.Equal(t, c.ID, *p.CategoryID)
}
