package models

import "github.com/google/uuid"

// NewID returns a time-ordered unique id such as "res-0190f5c2-...".
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}
