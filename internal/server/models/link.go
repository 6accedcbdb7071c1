package models

import "time"

// LinkCategory groups the link kinds a card can show, e.g. "Social".
type LinkCategory struct {
	ID            string
	Name          string
	IsActive      bool
	SubCategories []LinkSubCategory
	CreatedAt     time.Time
}

// LinkSubCategory is one concrete link kind inside a category, e.g. "LinkedIn".
type LinkSubCategory struct {
	ID       string
	Name     string
	Icon     string
	IsActive bool
}

// SelectedIndustry is an industry a user picked, with free-form tags.
type SelectedIndustry struct {
	IndustryID string
	Tags       []string
}

// AttachedLink is a URL a user attached under a catalog subcategory.
type AttachedLink struct {
	CategoryID    string
	SubCategoryID string
	URL           string
}
