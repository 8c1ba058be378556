package epub

import "errors"

// Errors returned when a package cannot be opened. Callers match them with
// errors.Is; the wrapped error carries the detail.
var (
	// ErrNotFound indicates the document path does not exist.
	ErrNotFound = errors.New("epub: document not found")

	// ErrMalformed indicates the container or its package document violates
	// the expected structure.
	ErrMalformed = errors.New("epub: malformed document")

	// ErrIO indicates an underlying read failure while draining the archive.
	ErrIO = errors.New("epub: read failure")
)

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
)
