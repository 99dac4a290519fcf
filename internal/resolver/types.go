// Package resolver wraps the media-resolution engine: it enumerates the
// encodings available for a source URL and materializes a chosen encoding
// into a local file.
package resolver

import "context"

// BestAudio is the identifier for the synthetic "best available audio"
// encoding. The engine resolves it itself; it never appears in ListFormats
// output.
const BestAudio = "bestaudio"

// Format describes one encoding of a source media item.
type Format struct {
	// ID is the engine's opaque identifier for this encoding.
	ID string
	// Ext is the container extension, e.g. "mp4".
	Ext string
	// Height is the vertical resolution in pixels, 0 when audio-only or
	// unknown.
	Height int
	// Size is the declared size in bytes, 0 when the engine does not
	// report one.
	Size int64
}

// Resolver is the media-resolution engine.
type Resolver interface {
	// ListFormats returns every encoding the engine knows for url.
	ListFormats(ctx context.Context, url string) ([]Format, error)
	// Download materializes the encoding identified by formatID into dest.
	// On failure the engine may leave a partial file at dest; the caller
	// owns cleanup.
	Download(ctx context.Context, url, formatID, dest string) error
}
