/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat and Persistence Business Logic Errors
	ErrMessageRecordNotFound: {Code: ErrMessageRecordNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrMessagePersistFailed:  {Code: ErrMessagePersistFailed, Message: "Message could not be saved. Please try again."},
	ErrResponseAlreadySet:    {Code: ErrResponseAlreadySet, Message: "Message already has a response."},

	// 3xxx: Identity and Session Errors
	ErrUnauthorized:    {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidNickname: {Code: ErrInvalidNickname, Message: "Invalid display name."},

	// 4xxx: Generation Backend Errors
	ErrGenerationUnavailable: {Code: ErrGenerationUnavailable, Message: "The assistant is unreachable right now.", Status: http.StatusBadGateway},
	ErrGenerationBadResponse: {Code: ErrGenerationBadResponse, Message: "The assistant returned an unusable answer.", Status: http.StatusBadGateway},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
