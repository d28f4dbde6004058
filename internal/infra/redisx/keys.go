package redisx

import "fmt"

const (
	// stock:availability:{product_id} -> JSON model.Availability
	KeyAvailability = "stock:availability:%d"
)

func availabilityKey(productID int64) string {
	return fmt.Sprintf(KeyAvailability, productID)
}
