package flights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/airports"
	"github.com/MimeLyc/travel-concierge/internal/geo"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

// Service resolves a Query into departure and arrival airports and asks
// the provider for flights.
type Service struct {
	registry *airports.Registry
	locator  geo.Locator
	provider Provider
}

// NewService creates a lookup service. locator may be nil, in which case a
// query without an origin always needs the departure city.
func NewService(registry *airports.Registry, locator geo.Locator, provider Provider) *Service {
	return &Service{registry: registry, locator: locator, provider: provider}
}

// Lookup never returns an error; every outcome is carried by the Result.
func (s *Service) Lookup(ctx context.Context, q Query) (res Result) {
	ctx, span := tracing.StartSpan(ctx, "flights.lookup")
	defer func() {
		if r := recover(); r != nil {
			log.Error("Flight lookup panicked: %v", r)
			res = Failure{Err: fmt.Errorf("%v", r)}
		}
		var err error
		if f, ok := res.(Failure); ok {
			err = f
		}
		tracing.End(span, err)
	}()

	// a departure city that cannot be geolocated is reported with the other
	// missing fields, ahead of them
	var departure []string
	var missing []string
	if strings.TrimSpace(q.Origin) == "" {
		codes, ok := s.departureFromLocation(ctx)
		if !ok {
			missing = append(missing, FieldOrigin)
		}
		departure = codes
	}
	missing = append(missing, q.Missing()...)
	if len(missing) > 0 {
		return NeedsInfo{Missing: missing}
	}

	outbound, err := time.Parse(dateLayout, strings.TrimSpace(q.OutboundDate))
	if err != nil {
		return Failure{Err: fmt.Errorf("%w: outbound date %q is not YYYY-MM-DD", ErrInvalidDates, q.OutboundDate)}
	}
	ret, err := time.Parse(dateLayout, strings.TrimSpace(q.ReturnDate))
	if err != nil {
		return Failure{Err: fmt.Errorf("%w: return date %q is not YYYY-MM-DD", ErrInvalidDates, q.ReturnDate)}
	}
	if ret.Before(outbound) {
		return Failure{Err: fmt.Errorf("%w: return date %s precedes outbound date %s", ErrInvalidDates, q.ReturnDate, q.OutboundDate)}
	}

	if departure == nil {
		departure = s.registry.CodesByCity(cityName(q.Origin))
		if len(departure) == 0 {
			return Failure{Err: fmt.Errorf("%w: %s", ErrUnknownCity, q.Origin)}
		}
	}

	arrival := s.registry.CodesByCity(cityName(q.Destination))
	if len(arrival) == 0 {
		return Failure{Err: fmt.Errorf("%w: %s", ErrUnknownCity, q.Destination)}
	}

	log.Info("Searching flights %v -> %v (%s / %s)", departure, arrival, q.OutboundDate, q.ReturnDate)
	raw, err := s.provider.Search(ctx, SearchParams{
		DepartureCodes: departure,
		ArrivalCodes:   arrival,
		OutboundDate:   outbound.Format(dateLayout),
		ReturnDate:     ret.Format(dateLayout),
	})
	if err != nil {
		return Failure{Err: err}
	}
	return Found{Raw: raw}
}

func (s *Service) departureFromLocation(ctx context.Context) ([]string, bool) {
	if s.locator == nil {
		return nil, false
	}
	code, err := s.locator.Country(ctx)
	if err != nil {
		log.Warn("Could not geolocate departure country: %v", err)
		return nil, false
	}
	country, err := airports.CountryName(code)
	if err != nil {
		log.Warn("Could not name departure country: %v", err)
		return nil, false
	}
	codes := s.registry.CodesByCountry(country)
	if len(codes) == 0 {
		log.Debug("No airports registered for %s", country)
		return nil, false
	}
	return codes, true
}

// cityName drops any region or country after the first comma, so
// "Toronto, Ontario" resolves like "Toronto".
func cityName(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
