// Package pki implements the keyed signature scheme of the exchange
// protocol: RSA-2048 key pairs, SHA-256 PKCS#1 v1.5 signing on the producer
// side and verification on the node side.
package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/ubuntu/decorate"
)

const keyBits = 2048

// ErrInvalidKey is returned when key material cannot be parsed.
var ErrInvalidKey = errors.New("invalid key material")

// GenerateKeyPair produces a new RSA-2048 key pair, both halves PEM encoded.
func GenerateKeyPair() (publicKey, privateKey []byte, err error) {
	defer decorate.OnError(&err, "could not generate key pair")

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, err
	}

	privateKey = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	publicKey = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return publicKey, privateKey, nil
}

// Sign signs content with the PEM encoded private key using SHA-256.
func Sign(content, privateKeyPEM []byte) (signature []byte, err error) {
	defer decorate.OnError(&err, "could not sign content")

	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(content)
	return rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
}

// Verify checks signature over content against the PEM encoded public key.
//
// A signature that does not match yields (false, nil). A non-nil error means
// the operation itself failed, for example on malformed key material, and
// must not be treated as an authentication rejection.
func Verify(content, signature, publicKeyPEM []byte) (ok bool, err error) {
	defer decorate.OnError(&err, "could not verify signature")

	key, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return false, err
	}

	digest := sha256.Sum256(content)
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature); err != nil {
		if errors.Is(err, rsa.ErrVerification) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func parsePrivateKey(keyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	rsaKey, isRSA := key.(*rsa.PrivateKey)
	if !isRSA {
		return nil, fmt.Errorf("%w: not an RSA private key", ErrInvalidKey)
	}
	return rsaKey, nil
}

func parsePublicKey(keyPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	rsaKey, isRSA := key.(*rsa.PublicKey)
	if !isRSA {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
	}
	return rsaKey, nil
}
