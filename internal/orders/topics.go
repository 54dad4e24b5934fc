package orders

import "strconv"

const (
	TopicOrderPlaced = "storefront.order.placed"
	TopicStockLow    = "storefront.stock.low"
)

// Partition key = order id, so every event of one order keeps its ordering.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
