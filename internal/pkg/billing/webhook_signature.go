package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultStripeTolerance bounds how far a signed timestamp may drift from the
// local clock before the delivery is treated as a replay.
const DefaultStripeTolerance = 300 * time.Second

// VerifyStripeSignature checks a signature header of the form
// "t=<unix>,v1=<hex hmac-sha256>" where the digest covers "{t}.{body}".
// Any malformed input, a timestamp outside the tolerance window, or a digest
// mismatch fails verification; no error is ever raised past this function.
func VerifyStripeSignature(payload []byte, signatureHeader, secret string, tolerance time.Duration, now time.Time) bool {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultStripeTolerance
	}

	var ts string
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			if decoded, err := hex.DecodeString(strings.ToLower(value)); err == nil {
				candidates = append(candidates, decoded)
			}
		}
	}
	if ts == "" || len(candidates) == 0 {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range candidates {
		if hmac.Equal(expected, sig) {
			return true
		}
	}
	return false
}

// VerifyRevenueCatAuthorization compares the Authorization header against the
// configured shared secret in constant time. A "Bearer " prefix is tolerated
// on either side. Empty header or secret always fails; the skip-when-unset
// policy lives with the caller, not here.
func VerifyRevenueCatAuthorization(authorizationHeader, secret string) bool {
	got := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authorizationHeader), "Bearer "))
	want := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(secret), "Bearer "))
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
