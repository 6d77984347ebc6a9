package tlbtree

import "errors"

var (
	errPoolExhausted = errors.New("pm pool space exhausted")
	errPoolMagic     = errors.New("not a tlbtree pm pool")
	errPoolTruncated = errors.New("pm pool file smaller than its header claims")
	errEmptyRecords  = errors.New("bulk build requires a non-empty sorted input")
	errTreeTooHigh   = errors.New("fixtree height overflow")
)
