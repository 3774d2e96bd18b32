package core

// error_messages.go turns technical errors into messages staff can act on.
//
// Every message carries a support code. Codes are grouped by prefix:
//
//	VAL   upload content (missing columns, unconvertible values, bad requests)
//	FILE  file handling (format, size, empty files)
//	REF   reference data (unresolved keys, unknown reference kinds)
//	STORE remote store (HTTP errors, connectivity, constraint violations)
//	WF    workflow (command issued from the wrong stage, aborted writes)
//	UPL   ingestion sessions (expired, busy, cancelled)
//	RATE  request throttling
//	ERR000 anything else; the technical error is in the logs
//
// Sentinel errors are matched first with errors.Is. Text patterns catch
// errors that cross a transport boundary and lose their identity.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/store/postgrest"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrMissingColumns, UserMessage{"Required columns are missing from the file", "Download the template and compare the column headers", "VAL001"}},
	{ErrCoercion, UserMessage{"A numeric or date value could not be read", "Fix the cell named in the details and upload again", "VAL002"}},
	{ErrInvalidRequest, UserMessage{"Some fields are missing or invalid", "Correct the highlighted fields and submit again", "VAL003"}},

	{frame.ErrUnsupportedFormat, UserMessage{"This file type is not supported", "Upload a .csv or .xlsx file", "FILE001"}},
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file into smaller parts", "FILE002"}},
	{frame.ErrEmptyFile, UserMessage{"The file has no header row", "Check that the first sheet holds the purchase orders", "FILE003"}},
	{ErrNoRows, UserMessage{"The file has no data rows", "Upload a file with at least one purchase order", "FILE004"}},

	{ErrIneligibleRows, UserMessage{"Some rows reference unknown products, suppliers or cost centers", "Add the missing reference records and map again", "REF001"}},
	{ErrUnknownReference, UserMessage{"Unknown reference table", "Use products, suppliers or cost-centers", "REF002"}},

	{ErrNoData, UserMessage{"There are no purchase orders to analyse", "Upload purchase orders first", "STORE004"}},

	{ErrInvalidTransition, UserMessage{"That step is not available yet", "Complete the previous step first", "WF001"}},
	{ErrWriteAborted, UserMessage{"Writing stopped at a failing row; earlier rows were saved", "Review the failing row in the details and start a new upload for the rest", "WF002"}},

	{ErrSessionNotFound, UserMessage{"Upload session not found", "The session may have expired. Please start a new upload", "UPL001"}},
	{ErrTooManyWrites, UserMessage{"Other uploads are being written right now", "Please wait a moment and try again", "UPL002"}},
	{ErrSessionBusy, UserMessage{"This upload is still processing the previous step", "Wait for it to finish, then continue", "UPL005"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively in order; the first match wins.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this key already exists", "Use the existing record or change the key", "STORE001"}},
	{"foreign key", UserMessage{"A referenced record does not exist", "Add the referenced record first", "STORE002"}},
	{"connection refused", UserMessage{"Unable to reach the data store", "Please try again in a few moments", "STORE003"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL003"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "UPL004"}},
	{"request body too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller parts", "FILE002"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. A nil error
// maps to the zero message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	// Aborted writes wrap the store error; the abort is what the user needs.
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var apiErr *postgrest.APIError
	if errors.As(err, &apiErr) {
		return UserMessage{
			Message: fmt.Sprintf("The data store rejected the request (HTTP %d)", apiErr.Status),
			Action:  "Check the details and try again",
			Code:    "STORE005",
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
