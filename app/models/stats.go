package models

// DailyStats is a count for a single day (YYYY-MM-DD).
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
