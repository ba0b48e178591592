package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyCallbackSignature checks the X-Callback-Signature header: an
// HMAC-SHA256 of the raw JSON body keyed by the shared private key. No field
// of the payload is trusted before this passes.
func VerifyCallbackSignature(payload []byte, signatureHeader, privateKey string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(privateKey)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}
