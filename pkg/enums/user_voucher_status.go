package enums

// UserVoucherStatus tracks a claimed voucher instance. The transition
// available -> used happens exactly once, guarded in the update predicate.
type UserVoucherStatus string

const (
	UserVoucherStatusAvailable UserVoucherStatus = "available"
	UserVoucherStatusUsed      UserVoucherStatus = "used"
)

func (s UserVoucherStatus) String() string { return string(s) }
