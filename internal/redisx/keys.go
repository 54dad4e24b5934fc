package redisx

import "time"

const (
	// Session cart: cart:{session_id} -> encoded cart JSON
	KeyCart = "cart:%s"

	// Cached order view: order_view:{order_id} -> JSON document
	KeyOrderView = "order_view:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCart      = 24 * time.Hour
	TTLOrderView = 5 * time.Minute
	TTLDedup     = 48 * time.Hour
)
