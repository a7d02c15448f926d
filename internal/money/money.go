// Package money parses user-typed amounts and formats them for display.
//
// Amounts are in Toman. Users type them with Persian or Latin digits,
// thousands separators, a currency word and optionally a هزار (thousand)
// or میلیون (million) multiplier.
package money

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/model"
)

var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٫", ".",
)

var noiseReplacer = strings.NewReplacer(
	"تومان", "",
	"تومن", "",
	"ریال", "",
	",", "",
	"٬", "",
)

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// Parse converts free text such as "۲.۵ میلیون تومان" or "35,000" into a
// positive amount. Anything else yields model.ErrInvalidAmount.
func Parse(text string) (decimal.Decimal, error) {
	s := noiseReplacer.Replace(digitReplacer.Replace(text))

	multiplier := decimal.NewFromInt(1)
	switch {
	case strings.Contains(s, "میلیون"):
		multiplier = million
		s = strings.ReplaceAll(s, "میلیون", "")
	case strings.Contains(s, "هزار"):
		multiplier = thousand
		s = strings.ReplaceAll(s, "هزار", "")
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, model.ErrInvalidAmount
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, model.ErrInvalidAmount
	}
	amount = amount.Mul(multiplier)
	if !amount.IsPositive() {
		return decimal.Zero, model.ErrInvalidAmount
	}
	return amount, nil
}

// Format renders an amount rounded to whole Toman with thousands separators.
func Format(d decimal.Decimal) string {
	return humanize.Comma(d.Round(0).IntPart())
}

// Percent renders a percentage with the given number of decimals.
func Percent(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
