package models

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
	Tier     Tier   `json:"user_type"`
}
