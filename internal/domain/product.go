package domain

import "time"

// Product is a catalog entry stored at products/{id}
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl"`
	Badge       string    `json:"badge,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
}

// CategoryIcon maps a category to the icon shown on product cards
func CategoryIcon(category string) string {
	switch category {
	case "engine":
		return "cog"
	case "brakes":
		return "compact-disc"
	case "electronics":
		return "bolt"
	case "accessories":
		return "wrench"
	case "lubricants":
		return "oil-can"
	default:
		return "box"
	}
}
