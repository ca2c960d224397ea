package domain

// User represents a registered user
type User struct {
	ID       int64  // Unique identifier, zero until first insert
	Username string // Login name
	Email    string // Contact address, unique
}
