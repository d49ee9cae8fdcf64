package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	SlackUser() SlackUserRepository

	// Close releases the backend connection
	Close() error
}
