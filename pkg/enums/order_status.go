package enums

// OrderStatus is stored as the exact customer-facing (Indonesian) label.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "Pesanan Dibuat"
	OrderStatusAwaitingPayment OrderStatus = "Menunggu Pembayaran"
	OrderStatusProcessing      OrderStatus = "Diproses"
	OrderStatusShipped         OrderStatus = "Dikirim"
	OrderStatusCompleted       OrderStatus = "Selesai"
	OrderStatusCanceled        OrderStatus = "Dibatalkan"
)

func (s OrderStatus) String() string { return string(s) }
