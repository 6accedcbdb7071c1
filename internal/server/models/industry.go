package models

import "time"

// Industry is a catalog entry users pick for their card. Image is a storage key.
type Industry struct {
	ID        string
	Name      string
	Image     string
	CreatedAt time.Time
}
