package domain

import "errors"

// Error kinds. Collaborators wrap these so callers can classify with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrTranslation   = errors.New("translation failure")
	ErrInference     = errors.New("inference failure")
	ErrUnhandled     = errors.New("unhandled error")
)
