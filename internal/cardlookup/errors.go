package cardlookup

import (
	"errors"
	"fmt"
)

// ErrCardNotFound is matched by lookups for cards the API does not know.
var ErrCardNotFound = errors.New("card not found")

// NotFoundError is returned when the card API answers 404.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("card not found: %s", e.URL)
}

// Is reports whether target is ErrCardNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrCardNotFound
}

// APIError is a non-404 error response from the card API.
type APIError struct {
	Status  int
	Details string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("card API error (HTTP %d): %s", e.Status, e.Details)
}
