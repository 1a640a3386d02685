/*
Package roomkey mints and validates signed invite keys for link-only rooms.

A key is a compact JWT bound to a single room name. Possession of a valid key
is the access credential for rooms created in link-only mode; no user identity
is encoded, so a key can be shared freely by the room's creator.
*/
package roomkey

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	// KeyLifetime bounds how long an invite key stays valid.
	KeyLifetime = 24 * time.Hour

	// keyIssuer identifies this server as the token issuer.
	keyIssuer = "mediamatch"
)

// ErrInvalidKey is returned for keys that fail signature, expiry, or room
// binding checks. Callers should treat it as an access-rule rejection.
var ErrInvalidKey = errors.New("invalid or expired room key")

// Claims binds a key to one room.
type Claims struct {
	jwt.StandardClaims

	// Room is the name of the room this key grants access to.
	Room string `json:"room"`
}

// Issuer signs and verifies room keys with a shared HMAC secret.
type Issuer struct {
	secret []byte
}

// NewIssuer returns an Issuer using the given signing secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Mint creates a signed key granting access to roomName.
func (i *Issuer) Mint(roomName string) (string, error) {
	now := time.Now()

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			ExpiresAt: now.Add(KeyLifetime).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    keyIssuer,
		},
		Room: roomName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(i.secret)
}

// Validate checks that key is well formed, signed by this issuer, unexpired,
// and bound to roomName.
func (i *Issuer) Validate(key, roomName string) error {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(key, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidKey
	}

	if claims.Room != roomName {
		return ErrInvalidKey
	}

	return nil
}
