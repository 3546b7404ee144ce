package vouchers

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// Discount is the outcome of evaluating a voucher against a subtotal.
type Discount struct {
	Amount     decimal.Decimal
	FinalTotal decimal.Decimal
}

// Evaluate runs the ordered eligibility checks and computes the discount.
// Pure calculation; check order matters for the user-facing message. The
// discount is clamped to the subtotal so the final total never goes negative.
func Evaluate(voucher *models.Voucher, subtotal decimal.Decimal, now time.Time) (Discount, error) {
	if voucher == nil {
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation, "voucher required")
	}

	if voucher.StartDate != nil && now.Before(*voucher.StartDate) {
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("voucher %s is not yet valid", voucher.Code))
	}
	if voucher.EndDate != nil && now.After(*voucher.EndDate) {
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("voucher %s has expired", voucher.Code))
	}
	if voucher.MaxUses != nil && voucher.UseCount >= *voucher.MaxUses {
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("voucher %s has been fully redeemed", voucher.Code))
	}
	if subtotal.LessThan(voucher.MinPurchaseAmount) {
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("minimum purchase of %s required for voucher %s",
				FormatRupiah(voucher.MinPurchaseAmount), voucher.Code))
	}

	var raw decimal.Decimal
	switch voucher.Type {
	case enums.VoucherTypePercentage:
		raw = voucher.Value.Div(oneHundred).Mul(subtotal).Round(2)
	case enums.VoucherTypeFixedAmount:
		raw = voucher.Value
	default:
		return Discount{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown voucher type")
	}

	amount := raw
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Amount:     amount,
		FinalTotal: subtotal.Sub(amount),
	}, nil
}

// FormatRupiah renders an amount the way the storefront shows prices,
// e.g. Rp50.000.
func FormatRupiah(amount decimal.Decimal) string {
	whole := amount.Round(0).IntPart()
	negative := whole < 0
	if negative {
		whole = -whole
	}
	digits := fmt.Sprintf("%d", whole)

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-Rp" + b.String()
	}
	return "Rp" + b.String()
}
