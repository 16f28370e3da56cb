package fsengine

// Kind is the typed error-kind enumeration every command API call resolves
// to. Callers never see lower-level errors — a disk failure, a bad lookup
// and a permission denial all surface as one of these five values.
type Kind int

const (
	Success Kind = iota
	Generic
	NotLoggedIn
	PermissionDenied
	NotFormatted
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "Success"
	case Generic:
		return "Generic"
	case NotLoggedIn:
		return "NotLoggedIn"
	case PermissionDenied:
		return "PermissionDenied"
	case NotFormatted:
		return "NotFormatted"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with an optional human-readable detail, used for
// logging; the service glue maps Kind alone to the wire reply string.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func errKind(k Kind, detail string) *Error {
	if k == Success {
		return nil
	}
	return &Error{Kind: k, Detail: detail}
}
