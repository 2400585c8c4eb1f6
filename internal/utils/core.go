package utils

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GenerateNanoIDWithPrefix creates a prefixed random id, e.g. acct_x7Yq…
func GenerateNanoIDWithPrefix(prefix string, length int) string {
	id, _ := gonanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", length)
	return prefix + "_" + id
}

func Now() time.Time {
	return time.Now().UTC()
}

// NowPtr returns a pointer to the current UTC time.
func NowPtr() *time.Time {
	now := Now()
	return &now
}

// GetOrDefault returns the value if the pointer is not nil, otherwise returns the default value
func GetOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr == nil {
		return defaultVal
	}
	return *ptr
}

// ToPtr returns a pointer to the given value.
func ToPtr[T any](v T) *T {
	return &v
}
