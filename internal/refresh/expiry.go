// Package refresh schedules widget access-token refreshes ahead of expiry.
//
// A Scheduler owns at most one pending refresh timer. Arming it decodes the
// token's exp claim, subtracts a safety margin, and either starts a
// single-shot timer or fires the callback immediately when the margin has
// already passed. A Session drives a Scheduler with a TokenClient, swapping
// in each refreshed token and re-arming.
package refresh

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryFromJWT returns the expiry encoded in a JWT's exp claim.
//
// Only the payload segment is decoded. The header and signature are never
// inspected, so tokens with an unfamiliar or missing alg still schedule.
// Wrong segment counts, undecodable payloads, and a missing, zero, or
// non-numeric exp all report false.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	payload, err := jwt.NewParser(jwt.WithPaddingAllowed()).DecodeSegment(parts[1])
	if err != nil {
		return time.Time{}, false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || exp.Unix() == 0 {
		return time.Time{}, false
	}
	return exp.Time, true
}
