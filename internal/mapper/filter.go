package mapper

import (
	"catalogsync/internal/models"
)

// Partition splits products into sellable (stock > 0) and excluded, keeping
// input order in both, and counts them into stats when it is not nil.
func Partition(products []models.Product, stats *models.Statistics) (sellable, excluded []models.Product) {
	for _, p := range products {
		if p.Sellable() {
			sellable = append(sellable, p)
		} else {
			excluded = append(excluded, p)
		}
	}
	if stats != nil {
		stats.Sellable += len(sellable)
		stats.OutOfStock += len(excluded)
	}
	return sellable, excluded
}
