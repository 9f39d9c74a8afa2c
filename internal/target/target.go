// Package target defines the capability interface through which the engine
// reads and writes the live scene it configures. The engine never reaches
// for ambient host state; every read and write goes through a Store.
package target

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrNotFound is returned when a locator does not resolve to a handle.
	ErrNotFound = errors.New("target not found")
	// ErrNoAttribute is returned when a handle has no attribute of the given name.
	ErrNoAttribute = errors.New("attribute does not exist")
	// ErrTypeMismatch is returned when a value cannot be stored in an attribute.
	ErrTypeMismatch = errors.New("value type mismatch")
)

// Handle is a live reference to a block of the target store.
type Handle interface {
	// Path is the canonical locator of the handle, used in logs and messages.
	Path() string
}

// Store is the read/write surface of the external target.
type Store interface {
	// Resolve walks the given segments from the store root.
	Resolve(path []locator.Segment) (Handle, error)
	// Get reads an attribute of a handle.
	Get(h Handle, attr string) (cty.Value, error)
	// Set writes an attribute of a handle. Only existing attributes can be set.
	Set(h Handle, attr string, v cty.Value) error
	// Members enumerates the member names of a collection owned by h, in order.
	Members(h Handle, collection string) ([]string, error)
}

// Root is the empty path; resolving it yields the store root.
var Root []locator.Segment

// Lookup resolves an attribute locator into its owning handle and attribute name.
func Lookup(s Store, loc locator.Locator) (Handle, string, error) {
	owner, attr, err := loc.Split()
	if err != nil {
		return nil, "", err
	}
	h, err := s.Resolve(owner)
	if err != nil {
		return nil, "", err
	}
	return h, attr, nil
}

// NotFoundError decorates ErrNotFound with the path that failed.
func NotFoundError(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}
