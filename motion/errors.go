package motion

import "errors"

var (
	errInvalidAxis = errors.New("motion: invalid axis index")
	errDisabled    = errors.New("motion: motors disabled")
)
