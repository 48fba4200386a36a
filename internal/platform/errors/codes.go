package errors

import (
	stderrors "errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeBadRequest represents a malformed request payload.
	CodeBadRequest Code = "BAD_REQUEST"

	// Lifecycle errors
	CodeInvalidState        Code = "INVALID_STATE"
	CodeUnauthorizedRole    Code = "UNAUTHORIZED_ROLE"
	CodeAlreadyBuzzed       Code = "ALREADY_BUZZED"
	CodeAlreadySubmitted    Code = "ALREADY_SUBMITTED"
	CodeInsufficientPlayers Code = "INSUFFICIENT_PLAYERS"
	CodeNoTracksAvailable   Code = "NO_TRACKS_AVAILABLE"

	// Session errors
	CodeSessionPackRequired   Code = "SESSION_PACK_REQUIRED"
	CodeSessionInvalidMode    Code = "SESSION_INVALID_MODE"
	CodeSessionInvalidRounds  Code = "SESSION_INVALID_ROUND_COUNT"
	CodeSessionWrongMode      Code = "SESSION_WRONG_MODE"
	CodeSessionInvalidBand    Code = "SESSION_INVALID_DIFFICULTY"
	CodeSessionFullLobby      Code = "SESSION_LOBBY_FULL"
	CodeSessionJoinAfterStart Code = "SESSION_JOIN_AFTER_START"

	// Player errors
	CodePlayerEmptyDisplayName Code = "PLAYER_EMPTY_DISPLAY_NAME"
	CodePlayerNameTaken        Code = "PLAYER_NAME_TAKEN"

	// Answer errors
	CodeAnswerEmptyText Code = "ANSWER_EMPTY_TEXT"

	// Credential errors
	CodeTokenInvalid Code = "TOKEN_INVALID"
	CodeTokenExpired Code = "TOKEN_EXPIRED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps an error code to the HTTP status used by the command surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorizedRole, CodeTokenInvalid, CodeTokenExpired:
		return http.StatusForbidden
	case CodeInvalidState, CodeAlreadyBuzzed, CodeAlreadySubmitted,
		CodeInsufficientPlayers, CodeSessionFullLobby, CodeSessionJoinAfterStart:
		return http.StatusConflict
	case CodeNoTracksAvailable:
		return http.StatusUnprocessableEntity
	case CodeBadRequest, CodeSessionPackRequired, CodeSessionInvalidMode, CodeSessionInvalidRounds,
		CodeSessionWrongMode, CodeSessionInvalidBand,
		CodePlayerEmptyDisplayName, CodePlayerNameTaken, CodeAnswerEmptyText:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the code from err when a domain error is in its chain.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
