package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
)

// CatalogService manages categories and meals.
type CatalogService struct {
	tx         Transactor
	tenants    TenantStore
	categories CategoryStore
	meals      MealStore
	images     ImageHost
	bus        Notifier
	log        Logger
}

// NewCatalogService wires a CatalogService.  images may be nil, in which
// case uploads are refused and deletions skip the image cleanup.
func NewCatalogService(s Stores, images ImageHost, bus Notifier, log Logger) *CatalogService {
	return &CatalogService{
		tx: s.Tx, tenants: s.Tenants, categories: s.Categories, meals: s.Meals,
		images: images, bus: orNopNotifier(bus), log: orNopLogger(log),
	}
}

// CategoryInput creates or updates a category.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *CategoryInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return invalid("category name required")
	}
	return nil
}

func (s *CatalogService) ListCategories(ctx context.Context, tenantID uint64) ([]model.Category, error) {
	return s.categories.List(ctx, tenantID)
}

// CreateCategory adds a category unless the plan's category cap is
// reached.
func (s *CatalogService) CreateCategory(ctx context.Context, tenantID uint64, in CategoryInput) (model.Category, error) {
	if err := in.validate(); err != nil {
		return model.Category{}, err
	}
	c := model.Category{TenantID: tenantID, Name: in.Name, Description: in.Description}
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		t, err := s.tenants.GetForUpdateTx(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		n, err := s.categories.CountTx(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if model.Reached(n, t.Plan.Limits().MaxCategories) {
			return ErrPlanLimit
		}
		return s.categories.CreateTx(ctx, tx, &c)
	})
	if err != nil {
		return model.Category{}, err
	}
	emit(s.bus, model.EntityCategory, events.ActionInsert, tenantID, c.ID)
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, tenantID, id uint64, in CategoryInput) (model.Category, error) {
	if err := in.validate(); err != nil {
		return model.Category{}, err
	}
	c := model.Category{ID: id, TenantID: tenantID, Name: in.Name, Description: in.Description}
	if err := s.categories.Update(ctx, c); err != nil {
		return model.Category{}, err
	}
	emit(s.bus, model.EntityCategory, events.ActionUpdate, tenantID, id)
	return c, nil
}

// DeleteCategory hard deletes a category no meal references, enabled or
// disabled.  Otherwise ErrCategoryInUse and nothing changes.
func (s *CatalogService) DeleteCategory(ctx context.Context, tenantID, id uint64) error {
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		n, err := s.meals.CountByCategoryTx(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		err = s.categories.DeleteTx(ctx, tx, tenantID, id)
		if errors.Is(err, repository.ErrConflict) {
			return ErrCategoryInUse
		}
		return err
	})
	if err != nil {
		return err
	}
	emit(s.bus, model.EntityCategory, events.ActionDelete, tenantID, id)
	return nil
}

// MealInput creates or updates a meal.  Price is a decimal string in
// JSON ("12.50").
type MealInput struct {
	CategoryID uint64          `json:"category_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

func (s *CatalogService) validateMeal(ctx context.Context, tenantID uint64, in *MealInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("meal name required")
	}
	if !in.Price.IsPositive() {
		return invalid("price must be greater than zero")
	}
	if in.Quantity < 0 {
		return invalid("quantity cannot be negative")
	}
	if in.CategoryID == 0 {
		return invalid("category_id required")
	}
	if _, err := s.categories.Get(ctx, tenantID, in.CategoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("category %d does not exist", in.CategoryID)
		}
		return err
	}
	return nil
}

// ListMeals returns live meals, optionally narrowed by category and
// stock.
func (s *CatalogService) ListMeals(ctx context.Context, tenantID uint64, f repository.MealFilter) ([]model.Meal, error) {
	return s.meals.List(ctx, tenantID, f)
}

func (s *CatalogService) GetMeal(ctx context.Context, tenantID, id uint64) (model.Meal, error) {
	return s.meals.Get(ctx, tenantID, id)
}

func (s *CatalogService) CreateMeal(ctx context.Context, tenantID uint64, in MealInput) (model.Meal, error) {
	if err := s.validateMeal(ctx, tenantID, &in); err != nil {
		return model.Meal{}, err
	}
	m := model.Meal{TenantID: tenantID, CategoryID: in.CategoryID, Name: in.Name, Price: in.Price, Quantity: in.Quantity}
	if err := s.meals.Create(ctx, &m); err != nil {
		return model.Meal{}, err
	}
	emit(s.bus, model.EntityMeal, events.ActionInsert, tenantID, m.ID)
	return m, nil
}

// UpdateMeal rewrites name, price, category and stock of a live meal.
// Historical order items keep their price snapshot.
func (s *CatalogService) UpdateMeal(ctx context.Context, tenantID, id uint64, in MealInput) (model.Meal, error) {
	if err := s.validateMeal(ctx, tenantID, &in); err != nil {
		return model.Meal{}, err
	}
	m, err := s.meals.Get(ctx, tenantID, id)
	if err != nil {
		return model.Meal{}, err
	}
	m.CategoryID, m.Name, m.Price, m.Quantity = in.CategoryID, in.Name, in.Price, in.Quantity
	if err := s.meals.Update(ctx, m); err != nil {
		return model.Meal{}, err
	}
	emit(s.bus, model.EntityMeal, events.ActionUpdate, tenantID, id)
	return m, nil
}

// DeleteMeal soft deletes a meal, then asks the image host to destroy
// its picture.  The image call runs after the row change is committed;
// its failure is logged only.
func (s *CatalogService) DeleteMeal(ctx context.Context, tenantID, id uint64) error {
	m, err := s.meals.Disable(ctx, tenantID, id)
	if err != nil {
		return err
	}
	emit(s.bus, model.EntityMeal, events.ActionDelete, tenantID, id)
	s.destroyImage(ctx, m.ImagePublicID)
	return nil
}

// UploadMealImage forwards an image to the host and stores the returned
// reference on the meal.  A previously stored image is destroyed.
func (s *CatalogService) UploadMealImage(ctx context.Context, tenantID, id uint64, filename string, r io.Reader) (model.Meal, error) {
	if s.images == nil {
		return model.Meal{}, invalid("image uploads are not configured")
	}
	m, err := s.meals.Get(ctx, tenantID, id)
	if err != nil {
		return model.Meal{}, err
	}
	url, publicID, err := s.images.Upload(ctx, filename, r)
	if err != nil {
		return model.Meal{}, err
	}
	if err := s.meals.SetImage(ctx, tenantID, id, url, publicID); err != nil {
		s.destroyImage(ctx, publicID)
		return model.Meal{}, err
	}
	old := m.ImagePublicID
	m.ImageURL, m.ImagePublicID = url, publicID
	emit(s.bus, model.EntityMeal, events.ActionUpdate, tenantID, id)
	if old != "" && old != publicID {
		s.destroyImage(ctx, old)
	}
	return m, nil
}

func (s *CatalogService) destroyImage(ctx context.Context, publicID string) {
	if s.images == nil || publicID == "" {
		return
	}
	if err := s.images.Destroy(ctx, publicID); err != nil {
		s.log.Warnf("catalog: destroy image %s: %v", publicID, err)
	}
}
