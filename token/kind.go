package token

import "strconv"

// Auth is a short-lived access token.
type Auth struct{ v Value }

// Refresh is a single-use token exchanged for a new pair.
type Refresh struct{ v Value }

// Value returns the underlying token bytes.
func (a Auth) Value() Value { return a.v }

// Value returns the underlying token bytes.
func (r Refresh) Value() Value { return r.v }

// Encode returns the transport text of the access token.
func (a Auth) Encode() string { return a.v.Encode() }

// Encode returns the transport text of the refresh token.
func (r Refresh) Encode() string { return r.v.Encode() }

// IsZero reports whether the token is empty.
func (a Auth) IsZero() bool { return a.v.IsZero() }

// IsZero reports whether the token is empty.
func (r Refresh) IsZero() bool { return r.v.IsZero() }

func (a Auth) String() string    { return "token.Auth(" + strconv.Itoa(a.v.Len()) + " bytes)" }
func (r Refresh) String() string { return "token.Refresh(" + strconv.Itoa(r.v.Len()) + " bytes)" }

// Kind constrains generic code to the two token kinds.
type Kind interface {
	Auth | Refresh
	Value() Value
}

// Wrap converts a raw Value into token kind T.
func Wrap[T Kind](v Value) T {
	var t T
	switch p := any(&t).(type) {
	case *Auth:
		p.v = v
	case *Refresh:
		p.v = v
	}
	return t
}

// NewAuth wraps v as an access token.
func NewAuth(v Value) Auth { return Auth{v: v} }

// NewRefresh wraps v as a refresh token.
func NewRefresh(v Value) Refresh { return Refresh{v: v} }

// GenerateAuth returns a fresh access token of size bytes.
func GenerateAuth(size int) (Auth, error) {
	v, err := Generate(size)
	if err != nil {
		return Auth{}, err
	}
	return Auth{v: v}, nil
}

// GenerateRefresh returns a fresh refresh token of size bytes.
func GenerateRefresh(size int) (Refresh, error) {
	v, err := Generate(size)
	if err != nil {
		return Refresh{}, err
	}
	return Refresh{v: v}, nil
}

// ParseAuth decodes transport text into an access token.
func ParseAuth(text string) (Auth, error) {
	v, err := Decode(text)
	if err != nil {
		return Auth{}, err
	}
	return Auth{v: v}, nil
}

// ParseRefresh decodes transport text into a refresh token.
func ParseRefresh(text string) (Refresh, error) {
	v, err := Decode(text)
	if err != nil {
		return Refresh{}, err
	}
	return Refresh{v: v}, nil
}

// Pair is an access token and the refresh token issued with it.
type Pair struct {
	Auth    Auth
	Refresh Refresh
}

// Tag names linking the two halves of a pair.
const (
	// TagRefreshToken is set on an access token record and holds its refresh token bytes.
	TagRefreshToken = "refresh-token"
	// TagAuthToken is set on a refresh token record and holds its access token bytes.
	TagAuthToken = "auth-token"
)
