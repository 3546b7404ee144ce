package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

// DefaultHoldWindow is how long a reservation shields stock for one shopper.
const DefaultHoldWindow = 10 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Holder identifies who owns a hold-set: a logged-in user or a guest session.
// Exactly one of the two must be set.
type Holder struct {
	UserID    *uuid.UUID
	SessionID *string
}

func (h Holder) Valid() bool {
	return (h.UserID != nil) != (h.SessionID != nil && *h.SessionID != "")
}

// HoldRequest asks for a quantity of one stock unit.
type HoldRequest struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

func (r HoldRequest) unit() Unit {
	return Unit{ProductID: r.ProductID, VariantID: r.VariantID}
}

// Reservation reports a successful hold-set.
type Reservation struct {
	ExpiresAt time.Time
}

// HoldManager creates and releases time-limited stock holds.
type HoldManager struct {
	tx     txRunner
	window time.Duration
	now    func() time.Time
}

// NewHoldManager builds a hold manager with the configured hold window.
func NewHoldManager(tx txRunner, window time.Duration) (*HoldManager, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if window <= 0 {
		window = DefaultHoldWindow
	}
	return &HoldManager{tx: tx, window: window, now: time.Now}, nil
}

// Reserve replaces the holder's previous hold-set with holds for the requested
// items. All-or-nothing: if any single item has insufficient available stock
// the whole reservation aborts and the holder ends up with zero holds.
// Re-running checkout preparation always restarts the hold window.
//
// Requests naming the same unit more than once are summed into one hold, and
// each unit's counter row is locked before its availability is read, so
// neither a duplicated request line nor a concurrent reservation can push
// total holds past physical stock.
func (m *HoldManager) Reserve(ctx context.Context, holder Holder, items []HoldRequest) (*Reservation, error) {
	if !holder.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "holder must be a user or a session, not both")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no items to reserve")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	wanted := aggregateRequests(items)

	now := m.now().UTC()
	expiresAt := now.Add(m.window)

	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := deleteHolds(ctx, tx, holder); err != nil {
			return err
		}

		holds := make([]models.StockHold, 0, len(wanted))
		for _, want := range wanted {
			if err := lockUnit(ctx, tx, want.unit); err != nil {
				return err
			}
			available, err := AvailableStock(ctx, tx, want.unit, now)
			if err != nil {
				return err
			}
			if want.quantity > available {
				label := unitLabel(ctx, tx, want.unit)
				return pkgerrors.New(pkgerrors.CodeOutOfStock,
					fmt.Sprintf("only %d of %s available", available, label)).
					WithDetails(map[string]any{
						"product_id": want.unit.ProductID,
						"variant_id": want.unit.VariantID,
						"requested":  want.quantity,
						"available":  available,
					})
			}
			holds = append(holds, models.StockHold{
				UserID:    holder.UserID,
				SessionID: holder.SessionID,
				ProductID: want.unit.ProductID,
				VariantID: want.unit.VariantID,
				Quantity:  want.quantity,
				ExpiresAt: expiresAt,
			})
		}

		if err := tx.WithContext(ctx).Create(&holds).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert holds")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Reservation{ExpiresAt: expiresAt}, nil
}

type unitRequest struct {
	unit     Unit
	quantity int
}

// aggregateRequests sums quantities per stock unit and returns the units in
// ascending order for consistent lock acquisition.
func aggregateRequests(items []HoldRequest) []unitRequest {
	sorted := make([]HoldRequest, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].unit().Less(sorted[j].unit())
	})

	wanted := make([]unitRequest, 0, len(sorted))
	for _, item := range sorted {
		unit := item.unit()
		if n := len(wanted); n > 0 && !wanted[n-1].unit.Less(unit) && !unit.Less(wanted[n-1].unit) {
			wanted[n-1].quantity += item.Quantity
			continue
		}
		wanted = append(wanted, unitRequest{unit: unit, quantity: item.Quantity})
	}
	return wanted
}

// Release unconditionally deletes the holder's holds.
func (m *HoldManager) Release(ctx context.Context, holder Holder) error {
	if !holder.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "holder must be a user or a session, not both")
	}
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return deleteHolds(ctx, tx, holder)
	})
}

// ActiveHolds loads the holder's non-expired holds inside the caller's
// transaction, ordered for consistent lock acquisition downstream.
func ActiveHolds(ctx context.Context, tx *gorm.DB, holder Holder, now time.Time) ([]models.StockHold, error) {
	var holds []models.StockHold
	query := holderScope(tx.WithContext(ctx), holder).Where("expires_at > ?", now)
	if err := query.Find(&holds).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load holds")
	}
	sort.Slice(holds, func(i, j int) bool {
		a := Unit{ProductID: holds[i].ProductID, VariantID: holds[i].VariantID}
		b := Unit{ProductID: holds[j].ProductID, VariantID: holds[j].VariantID}
		return a.Less(b)
	})
	return holds, nil
}

// DeleteHolds removes the holder's holds inside the caller's transaction.
func DeleteHolds(ctx context.Context, tx *gorm.DB, holder Holder) error {
	return deleteHolds(ctx, tx, holder)
}

func deleteHolds(ctx context.Context, tx *gorm.DB, holder Holder) error {
	if err := holderScope(tx.WithContext(ctx), holder).Delete(&models.StockHold{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete holds")
	}
	return nil
}

func holderScope(db *gorm.DB, holder Holder) *gorm.DB {
	if holder.UserID != nil {
		return db.Where("user_id = ?", *holder.UserID)
	}
	return db.Where("session_id = ?", *holder.SessionID)
}
