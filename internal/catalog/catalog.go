// Package catalog exposes the built-in trade material price list.
package catalog

import (
	"sort"
	"strings"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"github.com/google/uuid"
)

type item struct {
	name  string
	unit  string
	price float64
}

// namespace keeps system material ids stable across processes so that
// seeding the same catalog twice upserts instead of duplicating.
var namespace = uuid.MustParse("6f3a8a52-4a0e-4f7e-9c39-2b8c1e5d7a10")

var all []domain.Material

func init() {
	for _, t := range domain.Trades {
		for _, it := range systemItems[t] {
			all = append(all, domain.Material{
				ID:           uuid.NewSHA1(namespace, []byte(string(t)+"/"+it.name)).String(),
				Trade:        t,
				Name:         it.name,
				Unit:         it.unit,
				DefaultPrice: it.price,
			})
		}
	}
}

// All returns every system material, grouped by trade in display order.
func All() []domain.Material {
	out := make([]domain.Material, len(all))
	copy(out, all)
	return out
}

// ByTrade returns the system materials for t. An empty or unknown trade
// returns the whole catalog.
func ByTrade(t domain.Trade) []domain.Material {
	if _, ok := systemItems[t]; !ok {
		return All()
	}
	var out []domain.Material
	for _, m := range all {
		if m.Trade == t {
			out = append(out, m)
		}
	}
	return out
}

// Search filters ByTrade(t) by a case-insensitive substring of the name,
// sorted by name.
func Search(t domain.Trade, term string) []domain.Material {
	items := ByTrade(t)
	term = strings.ToLower(strings.TrimSpace(term))
	if term != "" {
		filtered := items[:0]
		for _, m := range items {
			if strings.Contains(strings.ToLower(m.Name), term) {
				filtered = append(filtered, m)
			}
		}
		items = filtered
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
