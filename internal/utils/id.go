package utils

import "github.com/google/uuid"

// TempPrefix marks ids generated locally for messages not yet confirmed by the service.
const TempPrefix = "temp-"

func NewID() string {
	return uuid.NewString()
}

func NewTempID() string {
	return TempPrefix + uuid.NewString()
}
