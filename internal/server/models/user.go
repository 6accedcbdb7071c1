// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a card owner. File fields hold storage keys, "" or nil meaning none.
type User struct {
	ID             string
	Username       string
	Email          string
	Mobile         string
	Slug           string
	ProfileImage   string
	Business       BusinessDetails
	BusinessImages []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BusinessDetails is the company block printed on the card.
type BusinessDetails struct {
	CompanyName    string
	CompanyAddress string
	CompanyMobile  string
	CompanyEmail   string
	CompanyWebsite string
	CompanyLogo    string
}
