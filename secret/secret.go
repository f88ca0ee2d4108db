// Package secret seals private game payloads before they are written to the
// relay store. Keys come from PBKDF2 over the player's signed auth message
// with a low iteration count, so this hides layouts from casual readers of the
// store only. Binding secrecy comes from the on-chain commitments.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 10
	keyLength  = 32
	saltLength = 16
	ivLength   = 12
)

var ErrDecrypt = errors.New("cannot decrypt payload")

// Envelope is the stored form of an encrypted payload.
type Envelope struct {
	Text string `json:"text"`
	Salt string `json:"salt"`
	IV   string `json:"iv"`
}

// maxCachedKeys bounds the derived key cache. Every write uses a fresh salt,
// so only recently written envelopes are worth keeping.
const maxCachedKeys = 64

var (
	keysMu sync.Mutex
	keys   = map[string][]byte{}
)

func deriveKey(password string, salt []byte) []byte {
	cacheKey := password + base64.StdEncoding.EncodeToString(salt)

	keysMu.Lock()
	defer keysMu.Unlock()
	if k, ok := keys[cacheKey]; ok {
		return k
	}
	k := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
	if len(keys) >= maxCachedKeys {
		for old := range keys {
			delete(keys, old)
			break
		}
	}
	keys[cacheKey] = k
	return k
}

// Encrypt marshals v to JSON and seals it under a key derived from password
// with a fresh salt and IV.
func Encrypt(password string, v any) (*Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	salt := make([]byte, saltLength)
	iv := make([]byte, ivLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("rand.Read: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("rand.Read: %w", err)
	}

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Text: base64.StdEncoding.EncodeToString(gcm.Seal(nil, iv, plaintext, nil)),
		Salt: base64.StdEncoding.EncodeToString(salt),
		IV:   base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt opens env and unmarshals the JSON payload into out.
func Decrypt(password string, env *Envelope, out any) error {
	if env == nil {
		return fmt.Errorf("%w: empty envelope", ErrDecrypt)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrDecrypt, err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return fmt.Errorf("%w: iv: %v", ErrDecrypt, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Text)
	if err != nil {
		return fmt.Errorf("%w: text: %v", ErrDecrypt, err)
	}

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return err
	}
	if len(iv) != gcm.NonceSize() {
		return fmt.Errorf("%w: iv length %d", ErrDecrypt, len(iv))
	}
	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
