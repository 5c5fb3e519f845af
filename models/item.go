package models

// Item is one row of the global inventory register.
type Item struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Quantity int64  `db:"quantity" json:"quantity"`
	// Description is nullable in DB; nil means no description was given.
	Description *string `db:"description" json:"description,omitempty"`
}
