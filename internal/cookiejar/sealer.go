package cookiejar

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// File layout when sealed: salt (16 bytes) | nonce (24 bytes) | box.
const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// sealer encrypts the cookie file with a key derived from a passphrase. A
// fresh salt and nonce are drawn for every write.
type sealer struct {
	passphrase string
}

func newSealer(passphrase string) *sealer {
	return &sealer{passphrase: passphrase}
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	var salt [saltSize]byte
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	key, err := s.deriveKey(salt[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltSize+nonceSize+secretbox.Overhead {
		return nil, errors.New("sealed cookie file too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[saltSize:saltSize+nonceSize])

	key, err := s.deriveKey(sealed[:saltSize])
	if err != nil {
		return nil, err
	}

	plaintext, ok := secretbox.Open(nil, sealed[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, errors.New("cookie file decryption failed")
	}
	return plaintext, nil
}

func (s *sealer) deriveKey(salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key([]byte(s.passphrase), salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
