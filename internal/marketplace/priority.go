package marketplace

import "strings"

// retailerPriorities ranks the major national chains shoppers pick first.
// Unknown retailers sort below all of them.
var retailerPriorities = map[string]int{
	"costco":       100,
	"kroger":       95,
	"safeway":      90,
	"albertsons":   85,
	"publix":       85,
	"wegmans":      80,
	"whole foods":  80,
	"aldi":         75,
	"sprouts":      70,
	"target":       65,
	"food lion":    60,
	"stop & shop":  60,
	"h-e-b":        60,
	"trader joe's": 55,
}

// PriorityFor scores a retailer for display ordering. Matching is by name
// substring so regional banners ("Kroger Delivery") inherit the chain score.
// A name matching several chains takes the highest score.
func PriorityFor(name string) int {
	lower := strings.ToLower(name)
	best := 0
	for chain, score := range retailerPriorities {
		if score > best && strings.Contains(lower, chain) {
			best = score
		}
	}
	return best
}
