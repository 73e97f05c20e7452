package conference

import "errors"

// Ошибки валидации модели конференции. Операция, вернувшая одну из них,
// состояние не меняет.
var (
	ErrNilInfo                = errors.New("conference: nil conference info")
	ErrNilParticipant         = errors.New("conference: nil participant")
	ErrInvalidAddress         = errors.New("conference: invalid address")
	ErrDuplicateParticipant   = errors.New("conference: participant already in roster")
	ErrParticipantNotFound    = errors.New("conference: participant not found")
	ErrInfoCancelled          = errors.New("conference: conference is cancelled")
	ErrInvalidStateTransition = errors.New("conference: invalid state transition")
	ErrUIDImmutable           = errors.New("conference: ICS UID cannot be changed once set")
	ErrSequenceRegression     = errors.New("conference: ICS sequence cannot decrease")
	ErrIdentityMismatch       = errors.New("conference: conference identity mismatch")
	ErrSecurityLevelLocked    = errors.New("conference: security level is immutable after allocation")
	ErrUnknownSecurityLevel   = errors.New("conference: unknown security level")
	ErrICSUnavailable         = errors.New("conference: iCalendar support is not available")
	ErrEmptyICS               = errors.New("conference: empty iCalendar payload")
	ErrMalformedICS           = errors.New("conference: malformed iCalendar payload")
	ErrInvalidExtraProperty   = errors.New("conference: invalid extra iCalendar property")
	ErrInvalidParameter       = errors.New("conference: invalid participant parameter")
)
