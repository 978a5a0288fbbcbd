package payment

import (
	"time"

	"github.com/gofrs/uuid"
)

type Method string

const (
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodGateway      Method = "GATEWAY"
)

type Status string

const (
	StatusUnpaid   Status = "UNPAID"
	StatusPaid     Status = "PAID"
	StatusExpired  Status = "EXPIRED"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

func (s Status) String() string { return string(s) }

type Payment struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	Method     Method     `json:"method"`
	Status     Status     `json:"status"`
	Amount     float64    `json:"amount"`
	GatewayRef *string    `json:"gateway_ref,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
