package domain

// Address identifies an external caller or payee. The empty string is the
// zero address: it never resolves to an account and never receives funds.
type Address string

// ZeroAddress is the explicit "nobody" value.
const ZeroAddress Address = ""

func (a Address) IsZero() bool   { return a == "" }
func (a Address) String() string { return string(a) }
