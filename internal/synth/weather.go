package synth

import "time"

// DailyWeather is one forecast entry.
type DailyWeather struct {
	Date            string  `json:"date"`
	TemperatureC    float64 `json:"temperature_c"`
	HumidityPercent int     `json:"humidity_percent"`
	Condition       string  `json:"condition"`
	WindSpeedKPH    float64 `json:"wind_speed_kph"`
	WindDirection   string  `json:"wind_direction"`
}

// WeeklySummary aggregates the forecast.
type WeeklySummary struct {
	AverageTemperatureC    float64 `json:"average_temperature_c"`
	AverageHumidityPercent float64 `json:"average_humidity_percent"`
	DominantWindDirection  string  `json:"dominant_wind_direction"`
}

// WeatherReport is the synthetic weather record of a city.
type WeatherReport struct {
	City                   string         `json:"city"`
	Continent              string         `json:"continent"`
	CurrentTemperatureC    float64        `json:"current_temperature_c"`
	CurrentHumidityPercent int            `json:"current_humidity_percent"`
	CurrentCondition       string         `json:"current_condition"`
	Timestamp              string         `json:"timestamp"`
	WeeklyForecast         []DailyWeather `json:"weekly_forecast"`
	WeeklySummary          WeeklySummary  `json:"weekly_summary"`
}

// Weather generates a 7-day forecast for city. The current conditions mirror
// the first forecast day. Unsupported cities return *UnsupportedCityError.
func (g *Generator) Weather(city string) (*WeatherReport, error) {
	continent, err := ContinentOf(city)
	if err != nil {
		return nil, err
	}
	band := continentTemperature[continent]

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	forecast := make([]DailyWeather, 0, forecastDays)
	for i := 0; i < forecastDays; i++ {
		forecast = append(forecast, DailyWeather{
			Date:            now.AddDate(0, 0, i).Format(dateLayout),
			TemperatureC:    g.uniform(band.Min, band.Max),
			HumidityPercent: g.intBetween(humidityMin, humidityMax),
			Condition:       g.pick(Conditions),
			WindSpeedKPH:    g.uniform(windSpeedMin, windSpeedMax),
			WindDirection:   g.pick(WindDirections),
		})
	}

	today := forecast[0]
	return &WeatherReport{
		City:                   city,
		Continent:              continent,
		CurrentTemperatureC:    today.TemperatureC,
		CurrentHumidityPercent: today.HumidityPercent,
		CurrentCondition:       today.Condition,
		Timestamp:              now.Format(time.RFC3339),
		WeeklyForecast:         forecast,
		WeeklySummary:          summarize(forecast),
	}, nil
}

func summarize(days []DailyWeather) WeeklySummary {
	if len(days) == 0 {
		return WeeklySummary{}
	}
	var tempSum float64
	var humSum int
	counts := make(map[string]int, len(WindDirections))
	order := make([]string, 0, len(WindDirections))
	for _, d := range days {
		tempSum += d.TemperatureC
		humSum += d.HumidityPercent
		if counts[d.WindDirection] == 0 {
			order = append(order, d.WindDirection)
		}
		counts[d.WindDirection]++
	}

	// ties go to the direction seen first
	dominant := order[0]
	for _, dir := range order[1:] {
		if counts[dir] > counts[dominant] {
			dominant = dir
		}
	}

	n := float64(len(days))
	return WeeklySummary{
		AverageTemperatureC:    round1(tempSum / n),
		AverageHumidityPercent: round1(float64(humSum) / n),
		DominantWindDirection:  dominant,
	}
}
