// Package errors provides structured error handling for chat services.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Identity errors
	CodeUnknownUser  Code = "UNKNOWN_USER"
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Client protocol errors
	CodeBadRequest Code = "BAD_REQUEST"

	// Storage errors
	CodeStorageFailure    Code = "STORAGE_FAILURE"
	CodeDuplicateRoomRace Code = "DUPLICATE_ROOM_RACE"
)
