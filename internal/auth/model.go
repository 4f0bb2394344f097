package auth

// Identity is stored in the request context after authentication.
type Identity struct {
	Name      string
	KeyPrefix string // enough of the key to tell keys apart in logs
}
