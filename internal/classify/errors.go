package classify

import "errors"

var (
	ErrUnavailable     = errors.New("classifier service unavailable")
	ErrInvalidResponse = errors.New("invalid response from classifier")
	ErrRejected        = errors.New("classifier rejected the frame")
	ErrEmptyFrame      = errors.New("no frame to classify")
)
