// Package airports is the static city/country to IATA code reference table.
package airports

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

//go:embed airports.json
var defaultData []byte

// Airport is one registry record.
type Airport struct {
	City     string `json:"city"`
	Country  string `json:"country"`
	IATACode string `json:"iata_code"`
}

// Registry answers case-insensitive lookups by city or country name.
// It is immutable after construction.
type Registry struct {
	airports  []Airport
	byCity    map[string][]string
	byCountry map[string][]string
}

// LoadDefault builds the registry from the embedded dataset.
func LoadDefault() (*Registry, error) {
	return Parse(defaultData)
}

// LoadFile builds the registry from a JSON file of Airport records.
// An empty path selects the embedded dataset.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read airports file: %w", err)
	}
	return Parse(data)
}

// Parse builds the registry from JSON data.
func Parse(data []byte) (*Registry, error) {
	var records []Airport
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse airports: %w", err)
	}
	return New(records)
}

// New builds the registry from records, keeping file order.
func New(records []Airport) (*Registry, error) {
	r := &Registry{
		airports:  make([]Airport, 0, len(records)),
		byCity:    make(map[string][]string),
		byCountry: make(map[string][]string),
	}
	for i, a := range records {
		code := strings.ToUpper(strings.TrimSpace(a.IATACode))
		if len(code) != 3 {
			return nil, fmt.Errorf("airport record %d (%s): invalid IATA code %q", i, a.City, a.IATACode)
		}
		a.IATACode = code
		r.airports = append(r.airports, a)
		r.byCity[fold(a.City)] = appendUnique(r.byCity[fold(a.City)], code)
		r.byCountry[fold(a.Country)] = appendUnique(r.byCountry[fold(a.Country)], code)
	}
	return r, nil
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.airports)
}

// CodesByCity returns every code whose city matches, possibly none.
func (r *Registry) CodesByCity(city string) []string {
	return append([]string(nil), r.byCity[fold(city)]...)
}

// CodesByCountry returns the union of codes of all cities in country.
func (r *Registry) CodesByCountry(country string) []string {
	return append([]string(nil), r.byCountry[fold(country)]...)
}

// CountryName maps a two-letter ISO 3166 region code to its English name.
func CountryName(code string) (string, error) {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", fmt.Errorf("unknown country code %q: %w", code, err)
	}
	name := display.English.Regions().Name(region)
	if name == "" {
		return "", fmt.Errorf("no name for country code %q", code)
	}
	return name, nil
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func appendUnique(codes []string, code string) []string {
	for _, c := range codes {
		if c == code {
			return codes
		}
	}
	return append(codes, code)
}
