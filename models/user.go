package models

// User is an account allowed past the login screen. Every user is the
// administrator of a lab; labs do not partition inventory.
// It maps to the `users` table in SQLite.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	// Password is stored and compared verbatim.
	Password string `db:"password" json:"-"`
	Email    string `db:"email" json:"email"`
}
