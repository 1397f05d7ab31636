package domain

import "errors"

var (
	ErrNeedTwoAssets    = errors.New("need at least two assets")
	ErrNoData           = errors.New("no data available")
	ErrInsufficientData = errors.New("insufficient data")
	ErrEmptyMatrix      = errors.New("correlation matrix empty")
	ErrUnsupportedLag   = errors.New("lag not applicable for interval")
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrNotFound         = errors.New("not found")
)
