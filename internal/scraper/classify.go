package scraper

import (
	"context"
	"errors"
	"strings"
)

// Class is the closed classification of a fetch error. Classification is
// separated from the retry loop so the signature list is testable on its own.
type Class int

const (
	// ClassRetryable retries with a doubled backoff.
	ClassRetryable Class = iota
	// ClassSessionFault retries with a tripled backoff after recreating the
	// browser session.
	ClassSessionFault
	// ClassFatal is not retried at all (configuration problems).
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassSessionFault:
		return "session_fault"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}

// ErrMissingParams marks a branch whose registry entry lacks the URL
// parameters needed to build a query. Not retryable.
var ErrMissingParams = errors.New("branch entry missing url parameters")

// sessionSignatures are the curated substrings that mark an error as a
// browser/session fault. Matched case-insensitively against the error text.
var sessionSignatures = []string{
	"session",
	"driver",
	"crash",
	"disconnected",
	"timeout",
	"navigation timeout",
	"target closed",
	"browser closed",
	"websocket url",
	"context canceled",
}

// Classify maps a fetch error onto the retry behaviour it deserves.
func Classify(err error) Class {
	if err == nil {
		return ClassRetryable
	}
	if errors.Is(err, ErrMissingParams) {
		return ClassFatal
	}
	// Recognized timeout error types count as session faults: the page load
	// deadline firing usually means the renderer is wedged.
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassSessionFault
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range sessionSignatures {
		if strings.Contains(msg, sig) {
			return ClassSessionFault
		}
	}
	return ClassRetryable
}
