package attempt

import "github.com/stemsi/tryout-backend/internal/apperror"

// Guard violations. All of them are permanent and must never be retried.
var (
	ErrTestInactive            = apperror.Guard("TEST_INACTIVE", "test is not active")
	ErrInvalidSection          = apperror.Guard("INVALID_SECTION", "section number is not valid for this operation")
	ErrSectionAlreadyStarted   = apperror.Guard("SECTION_ALREADY_STARTED", "section has already been started")
	ErrSectionOutOfOrder       = apperror.Guard("SECTION_OUT_OF_ORDER", "previous section has not been submitted")
	ErrSectionNotStarted       = apperror.Guard("SECTION_NOT_STARTED", "section has not been started")
	ErrSectionAlreadySubmitted = apperror.Guard("SECTION_ALREADY_SUBMITTED", "section has already been submitted")
	ErrAttemptCompleted        = apperror.Guard("ATTEMPT_COMPLETED", "attempt is already completed")
	ErrShapeMismatch           = apperror.Guard("ATTEMPT_SHAPE_MISMATCH", "attempt does not match its test definition")
)
