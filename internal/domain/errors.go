package domain

import "errors"

var (
	// ErrConfiguration indicates a required endpoint or credential is missing
	// or invalid at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthentication indicates the issue tracker rejected the stored token.
	ErrAuthentication = errors.New("issue tracker rejected the token")

	// ErrRetrieval indicates issues or work-logs could not be fetched.
	ErrRetrieval = errors.New("work-log retrieval failed")

	// ErrRendering indicates the messaging surface rejected rendered markup.
	ErrRendering = errors.New("markup rendering rejected")

	// ErrModel indicates the language model call failed.
	ErrModel = errors.New("language model call failed")

	ErrNotFound = errors.New("not found")

	// ErrDeleteUnsupported indicates the transport cannot delete a message
	// the user sent.
	ErrDeleteUnsupported = errors.New("message deletion not supported")
)
