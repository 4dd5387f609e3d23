package parser

import "errors"

var (
	// ErrFileNotFound: the path does not resolve to a readable file.
	ErrFileNotFound = errors.New("saved variables file not found")
	// ErrUnrecognizedFormat: the producer marker is missing, so the file was not written by the tracker addon.
	ErrUnrecognizedFormat = errors.New("unrecognized saved variables format")
)
