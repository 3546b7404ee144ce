package stock

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

// Unit identifies a stock counter: a product, or one of its variants.
type Unit struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

// Less orders units by (product_id, variant_id). Every multi-unit mutation in
// this package and its callers walks units in this order so concurrent
// transactions acquire row locks consistently.
func (u Unit) Less(other Unit) bool {
	if cmp := bytes.Compare(u.ProductID[:], other.ProductID[:]); cmp != 0 {
		return cmp < 0
	}
	return bytes.Compare(variantBytes(u.VariantID), variantBytes(other.VariantID)) < 0
}

func variantBytes(id *uuid.UUID) []byte {
	if id == nil {
		return nil
	}
	return id[:]
}

// AvailableStock returns physical stock minus all non-expired holds on the
// unit. Expired holds for the unit are swept first, so staleness is bounded by
// read frequency rather than sweeper cadence. Never stored; always computed.
func AvailableStock(ctx context.Context, tx *gorm.DB, unit Unit, now time.Time) (int, error) {
	if err := sweepExpiredHoldsForUnit(ctx, tx, unit, now); err != nil {
		return 0, err
	}

	physical, err := physicalStock(ctx, tx, unit)
	if err != nil {
		return 0, err
	}

	held, err := heldQuantity(ctx, tx, unit, now)
	if err != nil {
		return 0, err
	}

	return physical - held, nil
}

// LockAndDecrement atomically verifies and decrements the unit's stock counter
// within the caller's transaction. The guard lives in the UPDATE predicate, so
// the statement either decrements fully or not at all; zero rows affected
// means a concurrent buyer got there first.
func LockAndDecrement(ctx context.Context, tx *gorm.DB, unit Unit, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var res *gorm.DB
	if unit.VariantID != nil {
		res = tx.WithContext(ctx).Exec(`
			UPDATE product_variants
			SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND product_id = ? AND stock >= ?
		`, qty, *unit.VariantID, unit.ProductID, qty)
	} else {
		res = tx.WithContext(ctx).Exec(`
			UPDATE products
			SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND stock >= ?
		`, qty, unit.ProductID, qty)
	}
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return outOfStockError(ctx, tx, unit, qty)
	}
	return nil
}

// lockUnit takes the unit's counter row lock without changing the counter.
// Reservations lock before reading availability so two transactions racing
// for the same unit serialize instead of both passing the check.
func lockUnit(ctx context.Context, tx *gorm.DB, unit Unit) error {
	var res *gorm.DB
	if unit.VariantID != nil {
		res = tx.WithContext(ctx).Exec(`
			UPDATE product_variants
			SET updated_at = updated_at
			WHERE id = ? AND product_id = ?
		`, *unit.VariantID, unit.ProductID)
	} else {
		res = tx.WithContext(ctx).Exec(`
			UPDATE products
			SET updated_at = updated_at
			WHERE id = ?
		`, unit.ProductID)
	}
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "lock stock unit")
	}
	if res.RowsAffected == 0 {
		if unit.VariantID != nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant no longer available")
		}
		return pkgerrors.New(pkgerrors.CodeNotFound, "product no longer available")
	}
	return nil
}

// RecomputeParentStock overwrites the product's denormalized stock with the
// sum of its variants' stock. Must run after any variant stock change.
func RecomputeParentStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = (
			SELECT COALESCE(SUM(stock), 0) FROM product_variants WHERE product_id = ?
		), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, productID, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "recompute parent stock")
	}
	return nil
}

// RecomputeParentStocks recomputes every affected parent in ascending product
// id order so concurrent transactions lock product rows consistently, the same
// ordering Unit.Less gives the counters themselves.
func RecomputeParentStocks(ctx context.Context, tx *gorm.DB, productIDs map[uuid.UUID]bool) error {
	ids := make([]uuid.UUID, 0, len(productIDs))
	for id := range productIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	for _, id := range ids {
		if err := RecomputeParentStock(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func physicalStock(ctx context.Context, tx *gorm.DB, unit Unit) (int, error) {
	if unit.VariantID != nil {
		var variant models.ProductVariant
		err := tx.WithContext(ctx).
			Where("id = ? AND product_id = ?", *unit.VariantID, unit.ProductID).
			First(&variant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variant no longer available")
			}
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
		}
		return variant.Stock, nil
	}

	var product models.Product
	err := tx.WithContext(ctx).Where("id = ?", unit.ProductID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer available")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return product.Stock, nil
}

func heldQuantity(ctx context.Context, tx *gorm.DB, unit Unit, now time.Time) (int, error) {
	query := tx.WithContext(ctx).
		Model(&models.StockHold{}).
		Where("product_id = ? AND expires_at > ?", unit.ProductID, now)
	if unit.VariantID != nil {
		query = query.Where("variant_id = ?", *unit.VariantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}

	var held int64
	if err := query.Select("COALESCE(SUM(quantity), 0)").Scan(&held).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum holds")
	}
	return int(held), nil
}

func sweepExpiredHoldsForUnit(ctx context.Context, tx *gorm.DB, unit Unit, now time.Time) error {
	query := tx.WithContext(ctx).Where("product_id = ? AND expires_at <= ?", unit.ProductID, now)
	if unit.VariantID != nil {
		query = query.Where("variant_id = ?", *unit.VariantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}
	if err := query.Delete(&models.StockHold{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep expired holds")
	}
	return nil
}

func outOfStockError(ctx context.Context, tx *gorm.DB, unit Unit, requested int) error {
	label := unitLabel(ctx, tx, unit)
	remaining, err := physicalStock(ctx, tx, unit)
	if err != nil {
		remaining = 0
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "stock for "+label+" is insufficient").
		WithDetails(map[string]any{
			"product_id": unit.ProductID,
			"variant_id": unit.VariantID,
			"requested":  requested,
			"available":  remaining,
		})
}

func unitLabel(ctx context.Context, tx *gorm.DB, unit Unit) string {
	var product models.Product
	if err := tx.WithContext(ctx).Select("name").Where("id = ?", unit.ProductID).First(&product).Error; err != nil {
		return "item"
	}
	if unit.VariantID == nil {
		return "\"" + product.Name + "\""
	}
	var variant models.ProductVariant
	if err := tx.WithContext(ctx).Select("name").Where("id = ?", *unit.VariantID).First(&variant).Error; err != nil {
		return "\"" + product.Name + "\""
	}
	return "\"" + product.Name + "\" (" + variant.Name + ")"
}
