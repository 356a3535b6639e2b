package models

// Category is one of the fixed transaction categories.
type Category string

const (
	CategoryFood      Category = "Food"
	CategoryHousing   Category = "Housing"
	CategoryTransport Category = "Transport"
	CategoryLeisure   Category = "Leisure"
	CategoryHealth    Category = "Health"
	CategoryOther     Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryHousing,
	CategoryTransport,
	CategoryLeisure,
	CategoryHealth,
	CategoryOther,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
