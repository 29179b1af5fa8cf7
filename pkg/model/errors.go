package model

import "errors"

var (
	// malformed JSON or payload on ingest or on snapshot receipt
	ErrDecode = errors.New("decode error")
	// connection refused, reset or send on a closed channel
	ErrTransport = errors.New("transport error")
	// valid JSON with an unknown type, status or request
	ErrUnrecognizedMessage = errors.New("unrecognized message")
	// positions reference drivers without stats
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)
