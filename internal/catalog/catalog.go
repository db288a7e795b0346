package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Menu holds the immutable price tables for custom cake orders.
type Menu struct {
	Sizes      map[string]int `json:"sizes"`
	Fillings   map[string]int `json:"fillings"`
	BaseCustom int            `json:"base_custom"`
	Extras     Extras         `json:"extras"`
}

// Extras lists the per-option surcharges.
type Extras struct {
	Image         int `json:"image"`
	Color         int `json:"color"`
	Object        int `json:"object"`
	LongLettering int `json:"long_lettering"`
}

// Schedule maps pickup dates to their available time slots.
// A date with an empty slot list cannot be booked.
type Schedule map[string][]string

// Catalog bundles the menu and the pickup schedule. Loaded once at startup
// and never mutated afterwards.
type Catalog struct {
	Menu     Menu     `json:"menu"`
	Schedule Schedule `json:"schedule"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		Menu: Menu{
			Sizes: map[string]int{
				"1호": 25000,
				"2호": 36000,
				"3호": 47000,
				"하트": 42000,
			},
			Fillings: map[string]int{
				"생크림":  0,
				"초코":   3500,
				"레드벨벳": 6000,
				"티라미수": 5500,
			},
			BaseCustom: 20000,
			Extras: Extras{
				Image:         10000,
				Color:         5000,
				Object:        2000,
				LongLettering: 3000,
			},
		},
		Schedule: Schedule{
			"2025-12-24": {"10:00", "11:00", "14:00", "16:00"},
			"2025-12-25": {},
			"2025-12-26": {"11:00", "13:00", "15:00", "17:00", "19:00"},
		},
	}
}

// Load reads a catalog override from the given JSON file. An empty path
// returns the built-in defaults.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(cat.Menu.Sizes) == 0 || len(cat.Menu.Fillings) == 0 {
		return Catalog{}, fmt.Errorf("catalog file %s is missing size or filling tables", path)
	}
	return cat, nil
}

// SizeNames returns the size keys in a stable order for form rendering.
func (c Catalog) SizeNames() []string {
	return sortedKeys(c.Menu.Sizes)
}

// FillingNames returns the filling keys in a stable order.
func (c Catalog) FillingNames() []string {
	return sortedKeys(c.Menu.Fillings)
}

// Dates returns the pickup dates in a stable order.
func (c Catalog) Dates() []string {
	dates := make([]string, 0, len(c.Schedule))
	for date := range c.Schedule {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// TimesFor returns the available pickup slots for a date. Unknown dates and
// fully closed dates both yield an empty list.
func (c Catalog) TimesFor(date string) []string {
	return c.Schedule[date]
}

// HasSlot reports whether the date offers the given pickup time.
func (c Catalog) HasSlot(date, timeSlot string) bool {
	for _, slot := range c.Schedule[date] {
		if slot == timeSlot {
			return true
		}
	}
	return false
}

func sortedKeys(table map[string]int) []string {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
