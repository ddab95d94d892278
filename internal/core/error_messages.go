// Package core maps technical errors to messages a visitor can act on.
//
// # Error Codes Reference
//
// Each user message carries a code that can be quoted when reporting a
// problem. Codes are grouped by category:
//
// # Sheet Errors (SHEET001-SHEET099)
//
// Errors raised while fetching the published sheet:
//
//	SHEET002 - Not public: The sheet answered with a sign-in page
//	           Action: Share the sheet as "Anyone with the link can view"
//	           Patterns: "html page instead of csv"
//
//	SHEET003 - Sheet error: The sheet server rejected the request
//	           Action: Check the sheet id and tab, then try again
//	           Patterns: "unexpected status code"
//
//	SHEET004 - Sheet timeout: The sheet took too long to respond
//	           Action: Please try again in a few moments
//	           Patterns: "client.timeout exceeded"
//
//	SHEET001 - Sheet unreachable: Failed to fetch data from Google Sheets
//	           Action: Make sure the sheet is publicly accessible
//	           Patterns: "google sheets"
//
// # Dataset Errors (DATA001-DATA099)
//
//	DATA001 - Still loading: Locations have not finished loading
//	          Action: Please wait a moment and refresh
//	          Patterns: "dataset not loaded"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	REQ002 - Request timeout
//	         Action: Please try again
//	         Patterns: "context deadline exceeded"
//
//	REQ003 - Invalid parameter: A query or body value could not be used
//	         Action: Check the link or request and try again
//	         Patterns: "invalid parameter", "invalid request body"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again later
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins. Sheet errors always carry the
// "Google Sheets" prefix, so the specific SHEET codes come before SHEET001
// and before the generic request codes.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDatasetNotLoaded is returned by read paths that need records before the
// first load has finished.
var ErrDatasetNotLoaded = errors.New("dataset not loaded yet")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened
	Action  string `json:"action,omitempty"` // What to do about it
	Code    string `json:"code"`             // Reference code
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is matched in order; keep specific patterns ahead of the
// ones they would otherwise be shadowed by.
var errorPatterns = []errorPattern{
	// Sheet errors
	{
		pattern: "html page instead of csv",
		msg: UserMessage{
			Message: "The sheet is not publicly accessible",
			Action:  `Share the sheet as "Anyone with the link can view"`,
			Code:    "SHEET002",
		},
	},
	{
		pattern: "unexpected status code",
		msg: UserMessage{
			Message: "The sheet server rejected the request",
			Action:  "Check the sheet id and tab, then try again",
			Code:    "SHEET003",
		},
	},
	{
		pattern: "client.timeout exceeded",
		msg: UserMessage{
			Message: "The sheet took too long to respond",
			Action:  "Please try again in a few moments",
			Code:    "SHEET004",
		},
	},
	{
		pattern: "google sheets",
		msg: UserMessage{
			Message: "Failed to fetch data from Google Sheets",
			Action:  "Make sure the sheet is publicly accessible",
			Code:    "SHEET001",
		},
	},

	// Dataset errors
	{
		pattern: "dataset not loaded",
		msg: UserMessage{
			Message: "Locations are still loading",
			Action:  "Please wait a moment and refresh",
			Code:    "DATA001",
		},
	},

	// Request errors
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "invalid parameter",
		msg: UserMessage{
			Message: "The request contained an invalid value",
			Action:  "Check the link or request and try again",
			Code:    "REQ003",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request body could not be read",
			Action:  "Send a JSON object and try again",
			Code:    "REQ003",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000). The original
// error is only in the server log.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again later",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000; nil maps to the zero UserMessage.
//
//	msg := MapError(err)
//	// msg.Code == "SHEET002" for a private sheet
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// InvalidParam builds the error handlers return for an unusable query or
// path value.
func InvalidParam(name, value string) error {
	return fmt.Errorf("invalid parameter %s=%q", name, value)
}
