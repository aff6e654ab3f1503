package adapter

// PasswordHasher guards stored credentials.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Compare returns nil when plain matches the stored hash.
	Compare(hash, plain string) error
}
