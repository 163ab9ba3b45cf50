//go:build !linux || !cgo || nolibei

package transport

import (
	"context"
	"fmt"
)

func openSocket(ctx context.Context, name, path string) (Session, error) {
	return nil, fmt.Errorf("%w: built without libei (needs cgo and libei-1.0)", ErrUnavailable)
}

func openPortal(ctx context.Context, name string) (Session, error) {
	return nil, fmt.Errorf("%w: built without liboeffis (needs cgo and liboeffis-1.0)", ErrUnavailable)
}
