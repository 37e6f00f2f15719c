package domain

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrLayerBusy    = errors.New("layer has an operation in flight")
)
