package models

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUserExists is returned when registering a username that is taken.
	ErrUserExists = errors.New("user already exists")
)
