package orders

import "time"

type Category int

const (
	CategoryPrincipal Category = iota
	CategoryBeverage
	CategoryDessert
)

// Categories is the fixed enumeration; the full-menu discount checks
// coverage against it.
var Categories = []Category{CategoryPrincipal, CategoryBeverage, CategoryDessert}

func (c Category) String() string {
	switch c {
	case CategoryPrincipal:
		return "principal"
	case CategoryBeverage:
		return "beverage"
	case CategoryDessert:
		return "dessert"
	}
	return "unknown"
}

type Product struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Category Category `json:"category"`
	// Unitary products are sold per discrete unit; non-unitary ones by
	// hundredths of a unit (grams, priced per 100g).
	Unitary   bool      `json:"unitary"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID        string    `json:"id"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created"`
	Lines     []Line    `json:"products"`
}

// Line is one order row. Qty is units for unitary products, grams for
// non-unitary ones.
type Line struct {
	ProductID string `json:"product"`
	Qty       int    `json:"quantity"`
}
