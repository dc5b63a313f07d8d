package model

import "time"

// User represents an application user record as stored in the
// `users` table.  It carries the bcrypt hash and therefore must never
// be serialized to clients; handlers map it to PublicUser instead.
//
// Fields:
//  ID             – primary key identifier of the user.
//  Username       – unique login name, 4..30 characters, never an email.
//  Email          – unique email address.
//  HashedPassword – 60 character bcrypt hash.
//  FirstName      – given name.
//  LastName       – family name.
type User struct {
    ID             uint64    // users.id
    Username       string    // users.username
    Email          string    // users.email
    HashedPassword string    // users.hashed_password
    FirstName      string    // users.first_name
    LastName       string    // users.last_name
    CreatedAt      time.Time // users.created_at
    UpdatedAt      time.Time // users.updated_at
}

// PublicUser is the client-facing view of a user.  It has no field for
// the password hash.
type PublicUser struct {
    ID        uint64 `json:"id"`
    FirstName string `json:"firstName"`
    LastName  string `json:"lastName"`
    Email     string `json:"email"`
    Username  string `json:"username"`
}

// Public returns the sanitized view of u.
func (u *User) Public() PublicUser {
    return PublicUser{
        ID:        u.ID,
        FirstName: u.FirstName,
        LastName:  u.LastName,
        Email:     u.Email,
        Username:  u.Username,
    }
}
