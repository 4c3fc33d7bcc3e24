package models

import "time"

// SchoolSettings holds the singleton school profile printed on result sheets.
type SchoolSettings struct {
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Session   string    `db:"session" json:"session"`
	Principal string    `db:"principal" json:"principal"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
