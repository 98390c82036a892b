// Package storage persists rendered illustrations and serves back the
// public URL clients use to fetch them.
package storage

import "context"

// ImageStore writes illustration bytes and returns a publicly
// addressable URL for the saved object.
type ImageStore interface {
	SaveImage(ctx context.Context, ownerID, filename string, data []byte, contentType string) (string, error)
}
