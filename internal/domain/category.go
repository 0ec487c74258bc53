package domain

import "strings"

// Category is a canonical complaint category slug.
type Category string

const (
	CategoryRoads          Category = "roads"
	CategoryWaterSupply    Category = "water-supply"
	CategorySanitation     Category = "sanitation"
	CategoryElectricity    Category = "electricity"
	CategoryStreetLighting Category = "street-lighting"
	CategoryDrainage       Category = "drainage"
	CategoryPublicSafety   Category = "public-safety"
	CategoryParks          Category = "parks"
	CategoryNoise          Category = "noise"
	CategoryOther          Category = "other"
)

// Categories lists every canonical slug in display order.
var Categories = []Category{
	CategoryRoads,
	CategoryWaterSupply,
	CategorySanitation,
	CategoryElectricity,
	CategoryStreetLighting,
	CategoryDrainage,
	CategoryPublicSafety,
	CategoryParks,
	CategoryNoise,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryRoads:          "Roads & Potholes",
	CategoryWaterSupply:    "Water Supply",
	CategorySanitation:     "Sanitation & Garbage",
	CategoryElectricity:    "Electricity",
	CategoryStreetLighting: "Street Lighting",
	CategoryDrainage:       "Drainage & Sewage",
	CategoryPublicSafety:   "Public Safety",
	CategoryParks:          "Parks & Public Spaces",
	CategoryNoise:          "Noise",
	CategoryOther:          "Other",
}

// aliases maps folded display labels and common synonyms to slugs.
var aliases = map[string]Category{
	"road":                CategoryRoads,
	"pothole":             CategoryRoads,
	"potholes":            CategoryRoads,
	"water":               CategoryWaterSupply,
	"water-supplies":      CategoryWaterSupply,
	"garbage":             CategorySanitation,
	"waste":               CategorySanitation,
	"sanitation-garbage":  CategorySanitation,
	"power":               CategoryElectricity,
	"electric":            CategoryElectricity,
	"streetlight":         CategoryStreetLighting,
	"streetlights":        CategoryStreetLighting,
	"street-light":        CategoryStreetLighting,
	"street-lights":       CategoryStreetLighting,
	"sewage":              CategoryDrainage,
	"drainage-sewage":     CategoryDrainage,
	"safety":              CategoryPublicSafety,
	"park":                CategoryParks,
	"parks-public-spaces": CategoryParks,
	"roads-potholes":      CategoryRoads,
	"misc":                CategoryOther,
	"general":             CategoryOther,
}

// Label returns the human display label for c.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return categoryLabels[CategoryOther]
}

// Valid reports whether c is a canonical slug.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// NormalizeCategory folds any slug, display label or known synonym into a
// canonical slug. Unrecognized input maps to CategoryOther.
func NormalizeCategory(input string) Category {
	folded := foldLabel(input)
	if folded == "" {
		return CategoryOther
	}
	if c := Category(folded); c.Valid() {
		return c
	}
	if c, ok := aliases[folded]; ok {
		return c
	}
	return CategoryOther
}

func foldLabel(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.NewReplacer("&", " ", "_", " ", "/", " ", ",", " ").Replace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t'
	})
	filtered := fields[:0]
	for _, f := range fields {
		if f == "and" {
			continue
		}
		filtered = append(filtered, f)
	}
	return strings.Join(filtered, "-")
}
