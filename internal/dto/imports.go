package dto

// ImportResult reports the outcome of a CSV mark import.
type ImportResult struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors"`
}

// ImportRowError describes a row that could not be imported. Row is 1-based
// and counts the header.
type ImportRowError struct {
	Row     int    `json:"row"`
	RollNo  string `json:"roll_no,omitempty"`
	Message string `json:"message"`
}
