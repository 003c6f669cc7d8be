package practice

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrFetchFailed        = errors.New("fetching question sets failed")
	ErrSaveFailed         = errors.New("saving question set failed")
	ErrSessionNotFound    = errors.New("practice session not found")
	ErrSessionForbidden   = errors.New("practice session belongs to another user")
	ErrSessionLoading     = errors.New("practice session is still loading")
	ErrSessionFinished    = errors.New("practice session is finished")
	ErrSessionNotFinished = errors.New("practice session is not finished")
	ErrSessionClosed      = errors.New("practice session is closed")
	ErrNoQuestions        = errors.New("practice session has no questions")
	ErrAnswerRequired     = errors.New("answer the current question first")
	ErrInvalidOption      = errors.New("option must be between 1 and 4")
	ErrSetNotInSession    = errors.New("question set is not part of this session")
)
