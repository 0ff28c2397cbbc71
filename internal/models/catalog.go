package models

type Scheme struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Subject struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Slug     string `json:"slug" db:"slug"`
	SchemeID int64  `json:"schemeId" db:"scheme_id"`
}

type Level struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Order    int    `json:"order" db:"sort_order"`
	SchemeID int64  `json:"schemeId" db:"scheme_id"`
}

type Town struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Slug   string `json:"slug" db:"slug"`
	County string `json:"county" db:"county"`
}
