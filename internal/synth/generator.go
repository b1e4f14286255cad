package synth

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	forecastDays = 7
	eventCount   = 5
	dateLayout   = "2006-01-02"
)

const (
	windSpeedMin    = 5.0
	windSpeedMax    = 40.0
	humidityMin     = 20
	humidityMax     = 100
	eventMaxDaysOut = 30
)

var (
	Conditions     = []string{"Sunny", "Cloudy", "Rainy", "Stormy", "Snowy", "Windy", "Foggy"}
	WindDirections = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	EventTypes     = []string{"Festival", "Concert", "Exhibition", "Parade", "Theater", "Food Fair", "Cultural Workshop"}
	Venues         = []string{"City Hall", "Central Park", "Downtown Arena", "Museum of Art", "Opera House", "Riverfront", "Main Square"}
)

// Generator draws synthetic records from a random source. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rnd = r }
}

// WithClock sets the clock used for timestamps and dates.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// uniform returns a value in [lo, hi] rounded to one decimal.
func (g *Generator) uniform(lo, hi float64) float64 {
	return round1(lo + g.rnd.Float64()*(hi-lo))
}

// intBetween returns an integer in [lo, hi].
func (g *Generator) intBetween(lo, hi int) int {
	return lo + g.rnd.IntN(hi-lo+1)
}

func (g *Generator) pick(items []string) string {
	return items[g.rnd.IntN(len(items))]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
