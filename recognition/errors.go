package recognition

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized    = errors.New("recognizer not initialized")
	ErrInvalidName       = errors.New("invalid person name")
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrNoImages          = errors.New("at least one image is required")
	ErrNoValidFaces      = errors.New("no valid faces detected in any image")
	ErrInvalidTolerance  = errors.New("tolerance must be a positive number")
)

// DuplicateIdentityError names the identity an enrollment collided with.
type DuplicateIdentityError struct {
	Name string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("person '%s' already exists", e.Name)
}

func (e *DuplicateIdentityError) Unwrap() error {
	return ErrDuplicateIdentity
}
