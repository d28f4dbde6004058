package model

// Availability is the catalog read model: on-hand stock minus live holds.
type Availability struct {
	ProductID int64 `json:"product_id"`
	Stock     int64 `json:"stock"`
	Reserved  int64 `json:"reserved"`
	Available int64 `json:"available"`
	InStock   bool  `json:"in_stock"`
}
