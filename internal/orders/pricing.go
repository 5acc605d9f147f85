package orders

// PricedLine pairs an order line with the product it references, ready
// for pricing.
type PricedLine struct {
	Product Product
	Qty     int
}

// Total computes the price of an order:
//   - non-unitary products are priced per 100 units of measure
//   - unitary products get every third unit free (3x2, per line)
//   - orders covering every category get 20% off the whole total
//
// An empty order prices at 0 and never qualifies for the full-menu
// discount.
func Total(lines []PricedLine) float64 {
	var total float64
	seen := map[Category]bool{}

	for _, l := range lines {
		seen[l.Product.Category] = true

		if !l.Product.Unitary {
			total += l.Product.Price * float64(l.Qty) / 100
			continue
		}
		effective := l.Qty - l.Qty/3
		total += l.Product.Price * float64(effective)
	}

	if len(lines) > 0 && len(seen) == len(Categories) {
		total *= 0.8
	}
	return total
}
