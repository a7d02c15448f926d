package model

import "strings"

// Category is one of a fixed set of expense labels. The values are the
// user-facing Persian names and are stored verbatim.
type Category string

const (
	CategoryFood          Category = "غذا"
	CategoryTransport     Category = "حمل و نقل"
	CategoryShopping      Category = "خرید"
	CategoryEntertainment Category = "تفریح"
	CategoryBills         Category = "قبوض"
	CategoryHealth        Category = "سلامتی"
	CategoryEducation     Category = "آموزش"
	CategoryGift          Category = "هدیه"
	CategoryRent          Category = "اجاره"
	CategoryOther         Category = "سایر"
)

// Categories lists every category in display order; CategoryOther is last.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBills,
	CategoryHealth,
	CategoryEducation,
	CategoryGift,
	CategoryRent,
	CategoryOther,
}

// Valid reports whether c belongs to the fixed set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizeCategory maps free text onto the fixed set, falling back to CategoryOther.
func NormalizeCategory(s string) Category {
	c := Category(strings.Join(strings.Fields(s), " "))
	if c.Valid() {
		return c
	}
	return CategoryOther
}
