package model

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// User is read-only reference data within a session.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
	Color  string `json:"color"`
}

// Initials returns up to two upper-case initials of name, used as the
// short avatar label.
func Initials(name string) string {
	var initials []rune
	for _, part := range strings.Fields(name) {
		initials = append(initials, unicode.ToUpper([]rune(part)[0]))
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

// NewID returns a UUIDv7: a millisecond timestamp prefix followed by random bits.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Field is one slot of a sparse patch.
type Field[T any] struct {
	Value T
	Set   bool
}

func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

func (f Field[T]) apply(dst *T) {
	if f.Set {
		*dst = f.Value
	}
}
