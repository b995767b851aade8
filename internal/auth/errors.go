package auth

import "errors"

// Kind distinguishes why a credential was refused.
type Kind int

const (
	// KindMissing means no credential was presented.
	KindMissing Kind = iota + 1
	// KindInvalid means the credential was malformed, forged, expired or
	// belongs to an unknown or inactive user.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing credential"
	case KindInvalid:
		return "invalid credential"
	default:
		return "unknown"
	}
}

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Error is returned by Gate.Authenticate. Callers switch on Kind, or use
// errors.Is against ErrMissingCredential / ErrInvalidCredential.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrMissingCredential:
		return e.Kind == KindMissing
	case ErrInvalidCredential:
		return e.Kind == KindInvalid
	}
	return false
}

// KindOf reports the refusal kind of err, or 0 if err is not an auth error.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return 0
}

func missing() error {
	return &Error{Kind: KindMissing}
}

func invalid(cause error) error {
	return &Error{Kind: KindInvalid, Err: cause}
}
