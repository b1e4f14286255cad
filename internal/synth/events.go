package synth

import (
	"fmt"
	"strings"
)

// Event is one generated cultural event.
type Event struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// EventsReport lists upcoming events of a city.
type EventsReport struct {
	City      string  `json:"city"`
	Continent string  `json:"continent"`
	Events    []Event `json:"events"`
}

// Events generates five events dated 1 to 30 days from now, each drawn
// independently. Unsupported cities return *UnsupportedCityError.
func (g *Generator) Events(city string) (*EventsReport, error) {
	continent, err := ContinentOf(city)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	events := make([]Event, 0, eventCount)
	for i := 0; i < eventCount; i++ {
		eventType := g.pick(EventTypes)
		venue := g.pick(Venues)
		events = append(events, Event{
			Name:        fmt.Sprintf("%s %s %d", city, eventType, i+1),
			Date:        now.AddDate(0, 0, g.intBetween(1, eventMaxDaysOut)).Format(dateLayout),
			Type:        eventType,
			Location:    venue,
			Description: fmt.Sprintf("A wonderful %s happening at %s in %s.", strings.ToLower(eventType), venue, city),
		})
	}

	return &EventsReport{
		City:      city,
		Continent: continent,
		Events:    events,
	}, nil
}
