package f1

import (
	"fmt"
	"time"
)

type WeatherSnapshot struct {
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	Humidity      float64   `json:"humidity"`
	Precipitation float64   `json:"precipitation"`
	Raining       bool      `json:"raining"`
}

func (w WeatherSnapshot) String() string {
	return fmt.Sprintf("%.1f°C, %.0f%% humidity, %.1f km/h wind at %.0f°, %.1fmm rain", w.Temperature, w.Humidity, w.WindSpeed, w.WindDirection, w.Precipitation)
}
