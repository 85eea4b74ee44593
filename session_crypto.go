package access

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

const (
	sessionNonceSize = 12
	sessionTagSize   = 16
	// nonce + tag + at least one ciphertext byte
	sessionMinSealedSize = sessionNonceSize + sessionTagSize + 1

	sessionSecretMinLength = 16
)

// ErrSessionSecretTooShort is a configuration error, raised on first use and
// never masked as an ordinary auth failure.
var ErrSessionSecretTooShort = goerrors.New(
	"session secret must be at least 16 characters", goerrors.CategoryInternal).
	WithTextCode(TextCodeSessionConfigError).
	WithCode(goerrors.CodeInternal)

// SessionCipher seals the session payload with AES-256-GCM for cookie
// transport. Wire layout of the opaque value:
//
//	base64url( 12-byte nonce || 16-byte tag || ciphertext )
//
// The key is SHA-256 of the operator supplied secret, derived once per
// process on first use. Open reports every failure as ErrInvalidSession so a
// forged value yields no oracle about which part was wrong.
type SessionCipher struct {
	secret string
	random io.Reader

	once    sync.Once
	aead    cipher.AEAD
	initErr error
}

// NewSessionCipher returns a cipher for the given secret. The secret is not
// validated here; a short or empty secret surfaces on first Seal/Open.
func NewSessionCipher(secret string) *SessionCipher {
	return &SessionCipher{secret: secret, random: rand.Reader}
}

// WithRandom overrides the nonce source. Used by tests.
func (c *SessionCipher) WithRandom(r io.Reader) *SessionCipher {
	if r != nil {
		c.random = r
	}
	return c
}

func (c *SessionCipher) init() (cipher.AEAD, error) {
	c.once.Do(func() {
		if len(c.secret) < sessionSecretMinLength {
			c.initErr = ErrSessionSecretTooShort
			return
		}

		key := sha256.Sum256([]byte(c.secret))
		block, err := aes.NewCipher(key[:])
		if err != nil {
			c.initErr = goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize session cipher")
			return
		}

		c.aead, c.initErr = cipher.NewGCM(block)
	})
	return c.aead, c.initErr
}

// Seal encrypts the session into the opaque cookie value.
func (c *SessionCipher) Seal(session *SessionObject) (string, error) {
	aead, err := c.init()
	if err != nil {
		return "", err
	}

	if session == nil {
		return "", goerrors.New("session must not be nil", goerrors.CategoryInternal)
	}

	plaintext, err := json.Marshal(session)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize session")
	}

	nonce := make([]byte, sessionNonceSize)
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session nonce")
	}

	// aead.Seal appends the tag after the ciphertext; the wire layout wants
	// it between nonce and ciphertext
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	body := sealed[:len(sealed)-sessionTagSize]
	tag := sealed[len(sealed)-sessionTagSize:]

	out := make([]byte, 0, sessionNonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, body...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts and authenticates the opaque cookie value. Any defect
// (encoding, length, tag) returns ErrInvalidSession.
func (c *SessionCipher) Open(value string) (*SessionObject, error) {
	aead, err := c.init()
	if err != nil {
		return nil, err
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidSession
	}

	if len(raw) < sessionMinSealedSize {
		return nil, ErrInvalidSession
	}

	nonce := raw[:sessionNonceSize]
	tag := raw[sessionNonceSize : sessionNonceSize+sessionTagSize]
	body := raw[sessionNonceSize+sessionTagSize:]

	sealed := make([]byte, 0, len(body)+sessionTagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidSession
	}

	session := &SessionObject{}
	if err := json.Unmarshal(plaintext, session); err != nil {
		return nil, ErrInvalidSession
	}

	return session, nil
}

var _ SessionSealer = (*SessionCipher)(nil)
