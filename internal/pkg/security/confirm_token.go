package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConfirmTokenTTL bounds how long a moderation confirmation link stays usable.
const ConfirmTokenTTL = 48 * time.Hour

// GenerateConfirmToken builds a keyed token authorizing the removal
// confirmation flow for one content URL. The URL itself is never enough to
// derive the token without the server secret.
func GenerateConfirmToken(contentURL, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for token generation")
	}
	exp := time.Now().Add(ConfirmTokenTTL).Unix()
	return buildConfirmToken(contentURL, exp, secret), nil
}

// VerifyConfirmToken checks the token against the content URL and secret.
func VerifyConfirmToken(token, contentURL, secret string) error {
	if secret == "" {
		return errors.New("secret is required for token verification")
	}
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return errors.New("invalid token format")
	}
	expBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(expBytes) != 8 {
		return errors.New("invalid expiry encoding")
	}
	exp := int64(binary.BigEndian.Uint64(expBytes))
	expected := buildConfirmToken(contentURL, exp, secret)
	if !hmac.Equal([]byte(token), []byte(expected)) {
		return errors.New("invalid token signature")
	}
	if time.Now().Unix() > exp {
		return errors.New("token expired")
	}
	return nil
}

func buildConfirmToken(contentURL string, exp int64, secret string) string {
	var expBytes [8]byte
	binary.BigEndian.PutUint64(expBytes[:], uint64(exp))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(expBytes[:])
	mac.Write([]byte(contentURL))
	sig := mac.Sum(nil)
	return fmt.Sprintf("%s.%s", base64.RawURLEncoding.EncodeToString(expBytes[:]), base64.RawURLEncoding.EncodeToString(sig))
}
