package enums

type VoucherType string

const (
	VoucherTypePercentage  VoucherType = "PERCENTAGE"
	VoucherTypeFixedAmount VoucherType = "FIXED_AMOUNT"
)

func (t VoucherType) String() string { return string(t) }
