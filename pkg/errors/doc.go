// Package errors provides structured error handling with error codes for simple-deviceguard.
//
// Errors carry a typed code that maps to an HTTP status, so the transport
// layer can turn any error coming out of the verification core or request
// decoding into a consistent response.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-deviceguard/pkg/errors"
//
//	// Create a simple error
//	err := errors.New(errors.ErrCodeEmptyBody, "No data received")
//
//	// Wrap an existing error
//	err := errors.Wrap(jsonErr, errors.ErrCodeInvalidFormat, "Invalid request body")
//
//	// Use convenience constructors
//	err := errors.MissingRequired("user_id")
//
// # Error Inspection
//
//	if errors.IsCode(err, errors.ErrCodeMissingRequired) {
//		// client supplied incomplete data
//	}
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// Because *Error implements Is by comparing codes, a package level value
// such as device.ErrMissingRequiredField can be matched with the standard
// library errors.Is regardless of the message it was created with.
package errors
