/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Chat and Persistence Business Logic Errors
const (
	// ErrMessageRecordNotFound indicates that the requested message record does not exist.
	ErrMessageRecordNotFound = 2101

	// ErrMessagePersistFailed indicates that a message record could not be created or updated.
	ErrMessagePersistFailed = 2102

	// ErrResponseAlreadySet indicates an attempt to overwrite a message record's
	// response field after it has already been written.
	ErrResponseAlreadySet = 2103
)

// 3xxx: Identity and Session Errors
const (
	// ErrUnauthorized indicates that no valid identity accompanied the request.
	ErrUnauthorized = 3001

	// ErrInvalidNickname indicates that the supplied display name is empty or too long.
	ErrInvalidNickname = 3002
)

// 4xxx: Generation Backend Errors
const (
	// ErrGenerationUnavailable indicates that the text-generation backend could not be reached.
	ErrGenerationUnavailable = 4001

	// ErrGenerationBadResponse indicates that the backend answered with an
	// unusable or text-free response body.
	ErrGenerationBadResponse = 4002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
