// internal/encryption/encryption.go

// Package encryption implements the password protection protocol around
// AES-256-CBC: PBKDF2-SHA256 key derivation, PKCS#7 padding, and
// per-chunk IV derivation so any chunk decrypts independently given its
// sequence number.
//
// Wrong-password detection is padding-validity only. A wrong password
// can, rarely, decrypt to bytes whose tail parses as valid padding;
// callers needing certainty must compare the result against the chunk's
// content digest.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

const (
	// BlockSize is the AES block size
	BlockSize = 16
	// KeySize is the AES-256 key size
	KeySize = 32
	// SaltSize is the random salt mixed into key derivation
	SaltSize = 16
	// Iterations is the PBKDF2-SHA256 work factor, matching 7-Zip
	Iterations = 262144
)

// deriveKeyIV stretches (password, salt) into the 32-byte key and
// 16-byte base IV. Encryption and decryption must derive identically or
// they silently diverge, so both paths go through here.
func deriveKeyIV(password, salt []byte) (key [KeySize]byte, iv [BlockSize]byte) {
	material := pbkdf2.Key(password, salt, Iterations, KeySize+BlockSize, sha256.New)
	copy(key[:], material[:KeySize])
	copy(iv[:], material[KeySize:])
	wipe(material)
	return key, iv
}

// ChunkIV derives the effective IV for chunk seq from the base IV. The
// sequence number is XORed into the low 8 bytes, so any chunk decrypts
// without replaying its predecessors.
func ChunkIV(base [BlockSize]byte, seq uint64) [BlockSize]byte {
	var seqBytes [8]byte
	binary.LittleEndian.PutUint64(seqBytes[:], seq)
	iv := base
	for i := 0; i < 8; i++ {
		iv[i] ^= seqBytes[i]
	}
	return iv
}

// Encryptor holds the per-job encryption state. Close erases the key
// schedule reference and key material.
type Encryptor struct {
	block  cipher.Block
	key    [KeySize]byte
	salt   [SaltSize]byte
	baseIV [BlockSize]byte
}

// NewEncryptor derives a fresh encryption context: random 16-byte salt,
// key and base IV from (password, salt).
func NewEncryptor(password []byte) (*Encryptor, error) {
	var salt [SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return NewEncryptorWithSalt(password, salt[:])
}

// NewEncryptorWithSalt re-derives an encryption context from a known
// salt. Used on resume so the continued stream encrypts under the same
// key, and by tests needing reproducible output.
func NewEncryptorWithSalt(password, salt []byte) (*Encryptor, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: password cannot be empty", szstream.ErrInvalidParameter)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes", szstream.ErrInvalidParameter, SaltSize)
	}

	e := &Encryptor{}
	copy(e.salt[:], salt)
	e.key, e.baseIV = deriveKeyIV(password, salt)

	block, err := aes.NewCipher(e.key[:])
	if err != nil {
		return nil, fmt.Errorf("expand key schedule: %w", err)
	}
	e.block = block
	return e, nil
}

// Salt returns the salt that must be stored alongside the ciphertext.
func (e *Encryptor) Salt() [SaltSize]byte { return e.salt }

// BaseIV returns the derived base IV.
func (e *Encryptor) BaseIV() [BlockSize]byte { return e.baseIV }

// EncryptChunk pads the plaintext with PKCS#7 and encrypts it under the
// chunk's derived IV. Output length is the next multiple of BlockSize
// (padding always adds 1-16 bytes).
func (e *Encryptor) EncryptChunk(seq uint64, plaintext []byte) []byte {
	padded := pad(plaintext)
	iv := ChunkIV(e.baseIV, seq)
	cipher.NewCBCEncrypter(e.block, iv[:]).CryptBlocks(padded, padded)
	return padded
}

// Close erases the key material. The encryptor must not be used after.
func (e *Encryptor) Close() {
	wipe(e.key[:])
	wipe(e.baseIV[:])
	e.block = nil
}

// Decryptor holds the per-job decryption state, re-derived from the
// stored salt.
type Decryptor struct {
	block  cipher.Block
	key    [KeySize]byte
	baseIV [BlockSize]byte
}

// NewDecryptor re-derives the key from (password, salt); the base IV
// comes from the stream header, never from derivation, so a future
// format revision may randomize it. Deterministic: never re-randomizes.
func NewDecryptor(password, salt []byte, baseIV [BlockSize]byte) (*Decryptor, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: password cannot be empty", szstream.ErrInvalidParameter)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes", szstream.ErrInvalidParameter, SaltSize)
	}

	d := &Decryptor{baseIV: baseIV}
	// PBKDF2 output is prefix-stable, so a 32-byte request reproduces
	// the key half of the encryptor's 48-byte stretch exactly.
	material := pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New)
	copy(d.key[:], material)
	wipe(material)

	block, err := aes.NewCipher(d.key[:])
	if err != nil {
		return nil, fmt.Errorf("expand key schedule: %w", err)
	}
	d.block = block
	return d, nil
}

// DecryptChunk decrypts one chunk under its derived IV and strips the
// padding. Structurally invalid padding is reported as
// ErrWrongPasswordOrCorrupt.
func (d *Decryptor) DecryptChunk(seq uint64, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a block multiple", szstream.ErrInvalidArchive, len(ciphertext))
	}

	iv := ChunkIV(d.baseIV, seq)
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(d.block, iv[:]).CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext)
}

// Close erases the key material. The decryptor must not be used after.
func (d *Decryptor) Close() {
	wipe(d.key[:])
	wipe(d.baseIV[:])
	d.block = nil
}

// VerifyPassword checks a password against a known encrypted block by
// attempting decryption; padding validity is the check.
func VerifyPassword(password, salt []byte, baseIV [BlockSize]byte, encrypted []byte) error {
	d, err := NewDecryptor(password, salt, baseIV)
	if err != nil {
		return err
	}
	defer d.Close()
	_, err = d.DecryptChunk(0, encrypted)
	return err
}

// pad appends PKCS#7 padding: n bytes of value n, 1 <= n <= 16.
func pad(p []byte) []byte {
	n := BlockSize - len(p)%BlockSize
	padded := make([]byte, len(p)+n)
	copy(padded, p)
	for i := len(p); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad validates and strips PKCS#7 padding.
func unpad(p []byte) ([]byte, error) {
	if len(p) == 0 || len(p)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length %d", szstream.ErrWrongPasswordOrCorrupt, len(p))
	}
	n := int(p[len(p)-1])
	if n < 1 || n > BlockSize || n > len(p) {
		return nil, fmt.Errorf("%w: invalid padding", szstream.ErrWrongPasswordOrCorrupt)
	}
	for _, b := range p[len(p)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", szstream.ErrWrongPasswordOrCorrupt)
		}
	}
	return p[:len(p)-n], nil
}

// wipe zeroes a byte slice holding secret material.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
