package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time-sortable UUID. All persisted rows use these
// so primary key order roughly follows insertion order.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}
