package tpke

import (
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/drand/kyber"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/crypto"
)

var kdfInfo = []byte("stakedkg-tpke-chacha20poly1305")

// DecryptWithSharedSecret checks the ciphertext and opens its payload with
// the key derived from the combined shared secret. It returns ErrDecryption
// if the secret does not authenticate the payload, which is the case when it
// was combined from fewer shares than the threshold.
func DecryptWithSharedSecret(sch *crypto.Scheme, c *Ciphertext, secret kyber.Point) ([]byte, error) {
	if err := CheckCiphertextValidity(sch, c); err != nil {
		return nil, err
	}
	aead, nonce, err := deriveCipher(sch, secret)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, c.Payload, c.AAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plain, nil
}

func seal(sch *crypto.Scheme, secret kyber.Point, msg, aad []byte) ([]byte, error) {
	aead, nonce, err := deriveCipher(sch, secret)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, msg, aad), nil
}

// deriveCipher expands the shared secret into a ChaCha20-Poly1305 key and
// nonce. Every encryption draws a fresh r, so the nonce never repeats for a
// given key.
func deriveCipher(sch *crypto.Scheme, secret kyber.Point) (cipher.AEAD, []byte, error) {
	secretBuff, err := secret.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	reader := hkdf.New(sch.KDFHash, secretBuff, nil, kdfInfo)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(reader, nonce); err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}
	return aead, nonce, nil
}
