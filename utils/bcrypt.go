package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password for the usuarios.senha_hash column.
func HashPassword(senha string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(senha), bcrypt.DefaultCost)
}

// ComparePassword checks a login attempt against the stored senha_hash.
func ComparePassword(hashed string, senha string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(senha))
}
