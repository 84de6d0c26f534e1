package places

import (
	"fmt"
	"strings"

	"tripscout/internal/poi"
)

type priceMoney struct {
	Units        string `json:"units"`
	CurrencyCode string `json:"currencyCode"`
}

// parsePriceLevel strips the provider's PRICE_LEVEL_ prefix; unknown or
// unspecified values stay unset.
func parsePriceLevel(s string) poi.PriceLevel {
	v := strings.TrimPrefix(s, "PRICE_LEVEL_")
	switch poi.PriceLevel(v) {
	case poi.PriceFree, poi.PriceInexpensive, poi.PriceModerate, poi.PriceExpensive, poi.PriceVeryExpensive:
		return poi.PriceLevel(v)
	}
	return ""
}

func formatPrice(m *priceMoney) string {
	if m == nil || m.Units == "" {
		return ""
	}
	return m.Units + " " + m.CurrencyCode
}

func formatPriceRange(start, end *priceMoney) string {
	lo := formatPrice(start)
	hi := formatPrice(end)
	switch {
	case lo != "" && hi != "":
		return lo + " ~ " + hi
	case lo != "":
		return lo + " ~"
	case hi != "":
		return "~ " + hi
	}
	return ""
}

// reviewSummary joins the first three review texts, each capped at 200
// runes, with " | ".
func reviewSummary(pl *place) string {
	var parts []string
	for i, rv := range pl.Reviews {
		if i >= 3 {
			break
		}
		text := rv.Text.value()
		if text == "" {
			continue
		}
		r := []rune(text)
		if len(r) > 200 {
			text = string(r[:200])
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " | ")
}

// parseOpeningHours converts the provider's periods into seven daily
// entries. The provider numbers days 0 = Sunday; entries use ISO 8601
// weekdays (1 = Monday .. 7 = Sunday). Days without any slot are closed.
func parseOpeningHours(pl *place) *poi.OpeningHours {
	hours := pl.RegularOpeningHours
	if hours == nil {
		return nil
	}

	byDay := make(map[int][]poi.TimeSlot)
	for _, period := range hours.Periods {
		if period.Open.Day == nil {
			continue
		}
		isoDay := *period.Open.Day
		if isoDay == 0 {
			isoDay = 7
		}
		closeHour, closeMinute := 23, 59
		if period.Close != nil {
			closeHour, closeMinute = period.Close.Hour, period.Close.Minute
		}
		byDay[isoDay] = append(byDay[isoDay], poi.TimeSlot{
			Open:  fmt.Sprintf("%02d:%02d", period.Open.Hour, period.Open.Minute),
			Close: fmt.Sprintf("%02d:%02d", closeHour, closeMinute),
		})
	}

	days := make([]poi.DailyHours, 0, 7)
	for day := 1; day <= 7; day++ {
		slots, open := byDay[day]
		days = append(days, poi.DailyHours{Day: day, Slots: slots, Closed: !open})
	}
	return &poi.OpeningHours{Days: days, RawText: hours.WeekdayDescriptions}
}
