package entity

import "time"

// User represents an account row in the `users` table (or a document in the
// `users` collection for the MongoDB backend).
type User struct {
	ID           int64      `db:"id" bson:"_id"`
	Email        string     `db:"email" bson:"email"`
	Username     string     `db:"username" bson:"username"`
	PasswordHash string     `db:"hashed_password" bson:"hashed_password"`
	FullName     *string    `db:"full_name" bson:"full_name,omitempty"`
	IsActive     bool       `db:"is_active" bson:"is_active"`
	IsSuperuser  bool       `db:"is_superuser" bson:"is_superuser"`
	CreatedAt    time.Time  `db:"created_at" bson:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" bson:"updated_at,omitempty"`
}

// Public is the projection returned to API clients. IDs are rendered as
// strings because snowflake values do not fit in a JavaScript number.
type Public struct {
	ID       int64   `json:"id,string"`
	Email    string  `json:"email"`
	Username string  `json:"username"`
	FullName *string `json:"full_name"`
	IsActive bool    `json:"is_active"`
}

// ToPublic strips credential material from the record.
func (u *User) ToPublic() Public {
	return Public{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
		IsActive: u.IsActive,
	}
}
