package codec

import (
	"errors"
	"fmt"
)

// Codec errors
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingEvent   = errors.New("frame has no event name")
	ErrMissingData    = errors.New("event requires a payload")
	ErrUnknownCodec   = errors.New("unknown codec")
)

func wrapMalformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
}
