// Package synth generates randomized weather forecasts and cultural events
// for a fixed set of supported cities.
package synth

import (
	"fmt"
	"sort"
)

// Continent names used by the city table.
const (
	NorthAmerica = "North America"
	SouthAmerica = "South America"
	Europe       = "Europe"
	Asia         = "Asia"
	Africa       = "Africa"
)

var cityContinent = map[string]string{
	"New York":     NorthAmerica,
	"Toronto":      NorthAmerica,
	"Los Angeles":  NorthAmerica,
	"Mexico City":  NorthAmerica,
	"São Paulo":    SouthAmerica,
	"Buenos Aires": SouthAmerica,
	"Lima":         SouthAmerica,
	"Bogotá":       SouthAmerica,
	"London":       Europe,
	"Paris":        Europe,
	"Berlin":       Europe,
	"Rome":         Europe,
	"Tokyo":        Asia,
	"Beijing":      Asia,
	"Mumbai":       Asia,
	"Bangkok":      Asia,
	"Cairo":        Africa,
	"Lagos":        Africa,
	"Nairobi":      Africa,
	"Cape Town":    Africa,
}

// TemperatureBand is an inclusive range in °C.
type TemperatureBand struct {
	Min float64
	Max float64
}

// Contains reports whether c lies in the band.
func (b TemperatureBand) Contains(c float64) bool {
	return c >= b.Min && c <= b.Max
}

var continentTemperature = map[string]TemperatureBand{
	NorthAmerica: {Min: 10, Max: 25},
	Europe:       {Min: 10, Max: 25},
	Asia:         {Min: 20, Max: 35},
	SouthAmerica: {Min: 20, Max: 35},
	Africa:       {Min: 25, Max: 45},
}

// SupportedCities returns a copy of the city to continent table.
func SupportedCities() map[string]string {
	out := make(map[string]string, len(cityContinent))
	for city, continent := range cityContinent {
		out[city] = continent
	}
	return out
}

// CityNames returns the supported city names in sorted order.
func CityNames() []string {
	names := make([]string, 0, len(cityContinent))
	for city := range cityContinent {
		names = append(names, city)
	}
	sort.Strings(names)
	return names
}

// ContinentOf returns the continent of a supported city.
func ContinentOf(city string) (string, error) {
	continent, ok := cityContinent[city]
	if !ok {
		return "", &UnsupportedCityError{City: city}
	}
	return continent, nil
}

// TemperatureBandFor returns the temperature band of a continent.
func TemperatureBandFor(continent string) (TemperatureBand, bool) {
	b, ok := continentTemperature[continent]
	return b, ok
}

// UnsupportedCityError reports a city missing from the table.
type UnsupportedCityError struct {
	City string
}

func (e *UnsupportedCityError) Error() string {
	return fmt.Sprintf("City '%s' is not in the supported list.", e.City)
}

// ErrorPayload is the soft error shape returned to callers instead of a record.
type ErrorPayload struct {
	Error string `json:"error"`
}
