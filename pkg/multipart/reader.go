// Package multipart parses WADO-RS "multipart/related" bodies into a
// lazy sequence of parts. It wraps the standard library's
// mime/multipart.Reader, which already streams: NextPart never buffers
// a whole part into memory, which matters when parts run tens of MiB.
// No third-party streaming-multipart library appears anywhere in the
// retrieval pack, so this is the one place the ambient stack
// intentionally stays on the standard library (documented in
// DESIGN.md).
package multipart

import (
	"io"
	"mime"
	"mime/multipart"

	"github.com/otcheredev/wado-download-engine/internal/wado"
)

// Reader exposes the domain-facing sequence-of-parts contract:
// skip_first_boundary / read_headers / new_part_input_stream /
// read_boundary, backed by mime/multipart.Reader.
type Reader struct {
	mr      *multipart.Reader
	current *multipart.Part
	started bool
}

// BoundaryFromContentType extracts the RFC 2046 boundary token from a
// "multipart/related; boundary=...; type=..." Content-Type header.
func BoundaryFromContentType(contentType string) (string, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", wado.ErrMalformedBoundary
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return "", wado.ErrMalformedBoundary
	}
	return boundary, nil
}

// New wraps body as a multipart/related stream with the given boundary.
func New(body io.Reader, boundary string) *Reader {
	return &Reader{mr: multipart.NewReader(body, boundary)}
}

// SkipFirstBoundary is a no-op marker call, kept for symmetry with the
// sequence-of-parts contract: mime/multipart.Reader consumes the
// preamble and opening boundary internally on the first NextPart call.
func (r *Reader) SkipFirstBoundary() { r.started = true }

// ReadBoundary advances to the next part, returning false once the
// closing boundary is reached.
func (r *Reader) ReadBoundary() (bool, error) {
	part, err := r.mr.NextPart()
	if err == io.EOF {
		r.current = nil
		return false, nil
	}
	if err != nil {
		return false, wado.ErrUnexpectedEOF
	}
	r.current = part
	return true, nil
}

// ReadHeaders returns the current part's header block (already parsed
// by NextPart, which stops at CRLFCRLF per RFC 2046).
func (r *Reader) ReadHeaders() (map[string][]string, error) {
	if r.current == nil {
		return nil, wado.ErrUnexpectedEOF
	}
	return map[string][]string(r.current.Header), nil
}

// NewPartInputStream exposes the current part's payload as a stream
// that yields bytes until the next boundary.
func (r *Reader) NewPartInputStream() io.Reader {
	return r.current
}
