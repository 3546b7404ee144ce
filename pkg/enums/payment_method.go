package enums

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodEWallet      PaymentMethod = "E_WALLET"
)

func (m PaymentMethod) String() string { return string(m) }

// Deferred reports whether payment settles after order creation. Deferred
// methods only decrement stock once the gateway confirms payment.
func (m PaymentMethod) Deferred() bool {
	return m != PaymentMethodCOD
}

// Valid reports whether the method is one the storefront accepts.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodEWallet:
		return true
	default:
		return false
	}
}
