package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidTest     ErrCode = "INVALID_TEST_DEFINITION"
	ErrInvalidQuestion ErrCode = "INVALID_QUESTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrTestNotFound    ErrCode = "TEST_NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"
	ErrUserNotFound    ErrCode = "USER_NOT_FOUND"
	ErrSectionNotFound ErrCode = "SECTION_NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrTestInactive            ErrCode = "TEST_INACTIVE"
	ErrInvalidSection          ErrCode = "INVALID_SECTION"
	ErrSectionAlreadyStarted   ErrCode = "SECTION_ALREADY_STARTED"
	ErrSectionOutOfOrder       ErrCode = "SECTION_OUT_OF_ORDER"
	ErrSectionNotStarted       ErrCode = "SECTION_NOT_STARTED"
	ErrSectionAlreadySubmitted ErrCode = "SECTION_ALREADY_SUBMITTED"
	ErrAttemptCompleted        ErrCode = "ATTEMPT_COMPLETED"
	ErrShapeMismatch           ErrCode = "ATTEMPT_SHAPE_MISMATCH"
	ErrSectionNotExpired       ErrCode = "SECTION_NOT_EXPIRED"
	ErrSectionTimeOver         ErrCode = "SECTION_TIME_OVER"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUnavailable ErrCode = "UNAVAILABLE"
	ErrInternal    ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidTest:
		return "The test definition is not valid."
	case ErrInvalidQuestion:
		return "The correct index must point to one of the options."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrTestNotFound:
		return "Test not found."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrUserNotFound:
		return "User not found."
	case ErrSectionNotFound:
		return "This test has no such section."
	case ErrConflict:
		return "Resource already exists."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrTestInactive:
		return "This test is not currently active."
	case ErrInvalidSection:
		return "That section cannot be used here."
	case ErrSectionAlreadyStarted:
		return "This section has already been started."
	case ErrSectionOutOfOrder:
		return "Submit the previous section before starting this one."
	case ErrSectionNotStarted:
		return "This section has not been started yet."
	case ErrSectionAlreadySubmitted:
		return "You already submitted this section."
	case ErrAttemptCompleted:
		return "This attempt is already completed."
	case ErrShapeMismatch:
		return "This attempt does not match its test."
	case ErrSectionNotExpired:
		return "This section still has time left."
	case ErrSectionTimeOver:
		return "Time is up for this section."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrUnavailable:
		return "The service is temporarily unavailable. Please retry."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
