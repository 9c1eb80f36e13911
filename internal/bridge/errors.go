package bridge

import (
	"errors"

	"github.com/s3fs-fuse/docbridge/internal/docid"
	"github.com/s3fs-fuse/docbridge/internal/handle"
)

// Failure classes. The primitive entry points collapse all of them into the
// same sentinel; the Acquire* variants return them wrapped.
var (
	ErrMalformedIdentifier = docid.ErrMalformedIdentifier
	ErrResolution          = handle.ErrResolution
	ErrCreation            = errors.New("creation failure")
	ErrUnsupported         = errors.New("unsupported operation")
)

// InvalidDescriptor is returned by the primitive open calls on failure.
const InvalidDescriptor = -1
