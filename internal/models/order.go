package models

import "time"

// Order represents a broker order request and its last known status.
// IDs are assigned locally, seeded from the broker's next-valid-id, and are
// never reused for the lifetime of the process.
type Order struct {
	ID           int64
	Symbol       string
	Side         OrderSide
	Kind         OrderKind
	Quantity     int
	LimitPrice   float64 // LMT only
	StopPrice    float64 // STP only
	TrailAmount  float64 // TRAIL only
	Status       OrderStatus
	FilledQty    int
	AvgFillPrice float64
	PlacedAt     time.Time
}

// Open reports whether the order is still working at the broker.
func (o Order) Open() bool {
	return !o.Status.Terminal()
}
