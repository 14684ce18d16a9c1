package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Fixed cost; old hashes remain verifiable because the
// parameters are encoded into the hash string itself.
type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var defaultParams = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

// HashSecret produces a salted argon2id hash of a secret (password or raw
// refresh token) in the standard encoded form. Because every hash carries a
// fresh salt, stored hashes cannot be indexed by value; callers that need to
// find a match must verify candidates one by one.
func HashSecret(secret string) ([]byte, error) {
	return hashSecret(secret, defaultParams)
}

func hashSecret(secret string, params Argon2Params) ([]byte, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	encoded := fmt.Sprintf("$argon2id$v=19$t=%d,m=%d,p=%d$%s$%s",
		params.Time, params.Memory, params.Threads,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash))

	return []byte(encoded), nil
}

// VerifySecret reports whether secret matches the encoded hash. The final
// comparison is constant-time. A malformed hash verifies as false with an
// error rather than panicking.
func VerifySecret(secret string, encodedHash []byte) (bool, error) {
	parts := strings.Split(string(encodedHash), "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false, fmt.Errorf("parse hash: unrecognized format")
	}

	var (
		time    uint32
		memory  uint32
		threads uint8
	)
	if _, err := fmt.Sscanf(parts[3], "t=%d,m=%d,p=%d", &time, &memory, &threads); err != nil {
		return false, fmt.Errorf("parse hash params: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	hash, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(secret), salt, time, memory, threads, uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}

// SentinelHash is a valid hash of an unguessable secret. Login verifies
// against it when the account lookup fails so that "unknown email" and
// "wrong password" take comparable time.
func SentinelHash() []byte {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	hash, err := hashSecret(base64.RawURLEncoding.EncodeToString(buf), defaultParams)
	if err != nil {
		// rand.Read failing is the only error path and is unrecoverable anyway.
		panic(err)
	}
	return hash
}
