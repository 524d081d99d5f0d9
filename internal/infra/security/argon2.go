package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/wasipo/harbor-sub000/internal/core/port"
)

// Stored hashes use the PHC string layout:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
const phcPrefix = "$argon2id$"

var (
	errInvalidHashFormat = errors.New("argon2: invalid encoded hash format")
	errInvalidConfig     = errors.New("argon2: invalid configuration")
)

var b64 = base64.RawStdEncoding

// Argon2Config holds the cost parameters for new hashes.
type Argon2Config struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config matches the configuration defaults.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{Memory: 64 * 1024, Iterations: 3, Parallelism: 4, SaltLength: 16, KeyLength: 32}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return fmt.Errorf("%w: memory must be at least 8192 KiB", errInvalidConfig)
	case c.Iterations == 0:
		return fmt.Errorf("%w: iterations must be positive", errInvalidConfig)
	case c.Parallelism == 0:
		return fmt.Errorf("%w: parallelism must be positive", errInvalidConfig)
	case c.SaltLength < 8:
		return fmt.Errorf("%w: salt must be at least 8 bytes", errInvalidConfig)
	case c.KeyLength < 16:
		return fmt.Errorf("%w: key must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// phcHash is a decoded stored hash.
type phcHash struct {
	params Argon2Config
	salt   []byte
	key    []byte
}

func (h phcHash) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix, argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func parsePHC(encoded string) (phcHash, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return phcHash{}, errInvalidHashFormat
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return phcHash{}, errInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return phcHash{}, errInvalidHashFormat
	}
	if version != argon2.Version {
		return phcHash{}, fmt.Errorf("argon2: unsupported version %d", version)
	}

	var h phcHash
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Iterations, &h.params.Parallelism); err != nil {
		return phcHash{}, fmt.Errorf("%w: parameters: %v", errInvalidHashFormat, err)
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[2]); err != nil {
		return phcHash{}, fmt.Errorf("argon2: decode salt: %w", err)
	}
	if h.key, err = b64.DecodeString(fields[3]); err != nil {
		return phcHash{}, fmt.Errorf("argon2: decode key: %w", err)
	}
	h.params.SaltLength = uint32(len(h.salt))
	h.params.KeyLength = uint32(len(h.key))

	if err := h.params.validate(); err != nil {
		return phcHash{}, err
	}
	return h, nil
}

func derive(password string, salt []byte, p Argon2Config) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
}

// Hasher implements port.PasswordHasher with Argon2id.
// New hashes use the configured cost; verification reads the cost from the stored hash.
type Hasher struct {
	cfg Argon2Config
}

func NewHasher(cfg Argon2Config) (*Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Hasher{cfg: cfg}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	return hashWith(password, h.cfg)
}

func (h *Hasher) Verify(password, encoded string) (bool, error) {
	return VerifyPassword(password, encoded)
}

// NeedsRehash reports whether encoded was produced with different cost parameters.
func (h *Hasher) NeedsRehash(encoded string) bool {
	stored, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return stored.params != h.cfg
}

var _ port.PasswordHasher = (*Hasher)(nil)

// HashPassword hashes with DefaultArgon2Config.
func HashPassword(password string) (string, error) {
	return hashWith(password, DefaultArgon2Config())
}

func hashWith(password string, cfg Argon2Config) (string, error) {
	salt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}
	return phcHash{params: cfg, salt: salt, key: derive(password, salt, cfg)}.String(), nil
}

// VerifyPassword checks password against a stored hash in constant time.
// Empty inputs never match and are not an error.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(derive(password, stored.salt, stored.params), stored.key) == 1, nil
}
