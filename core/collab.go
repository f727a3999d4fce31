package core

import "time"

type (
	CursorPosition struct {
		UserID   string  `json:"userId"`
		UserName string  `json:"userName"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
	}

	ChatMessage struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		UserName  string    `json:"userName"`
		Text      string    `json:"text"`
		Timestamp time.Time `json:"timestamp"`
	}

	WeatherData struct {
		Location struct {
			Name    string `json:"name"`
			Region  string `json:"region"`
			Country string `json:"country"`
		} `json:"location"`
		Current struct {
			TempC     float64 `json:"temp_c"`
			TempF     float64 `json:"temp_f"`
			Condition struct {
				Text string `json:"text"`
				Icon string `json:"icon"`
			} `json:"condition"`
		} `json:"current"`
	}
)
