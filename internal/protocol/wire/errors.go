package wire

import "errors"

var (
	ErrShortHeader        = errors.New("wire: short header")
	ErrInvalidSize        = errors.New("wire: invalid message size")
	ErrMessageTooLarge    = errors.New("wire: message too large")
	ErrTruncated          = errors.New("wire: truncated argument data")
	ErrSizeMismatch       = errors.New("wire: size inconsistent with signature")
	ErrSignatureMismatch  = errors.New("wire: argument does not match signature")
	ErrNullNotAllowed     = errors.New("wire: null value for non-nullable argument")
	ErrUnterminatedString = errors.New("wire: string missing terminator")
	ErrMissingFD          = errors.New("wire: expected file descriptor not received")
	ErrBadFD              = errors.New("wire: invalid file descriptor")
	ErrEmbeddedNUL        = errors.New("wire: string contains a NUL byte")
)
