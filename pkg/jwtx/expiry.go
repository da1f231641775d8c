package jwtx

import "time"

// IsExpired reports whether token expires within buffer of now. Tokens that
// fail to decode or carry no exp claim count as expired.
func IsExpired(token string, buffer time.Duration) bool {
	return IsExpiredAt(token, buffer, time.Now())
}

// IsExpiredAt is IsExpired evaluated at a fixed instant.
func IsExpiredAt(token string, buffer time.Duration, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAtUnix() < now.Add(buffer).Unix()
}

// SecondsUntilExpiry returns the whole seconds left before token expires.
// It never goes below zero and returns 0 for anything undecodable.
func SecondsUntilExpiry(token string) int64 {
	return SecondsUntilExpiryAt(token, time.Now())
}

// SecondsUntilExpiryAt is SecondsUntilExpiry evaluated at a fixed instant.
func SecondsUntilExpiryAt(token string, now time.Time) int64 {
	claims, err := Decode(token)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return max(0, claims.ExpiresAtUnix()-now.Unix())
}

// RefreshDelay is how long to wait before refreshing token so that the
// refresh lands buffer ahead of its expiry. ok is false when the token has
// no usable exp.
func RefreshDelay(token string, buffer time.Duration, now time.Time) (delay time.Duration, ok bool) {
	claims, err := Decode(token)
	if err != nil || claims.ExpiresAt == nil {
		return 0, false
	}
	secs := claims.ExpiresAtUnix() - now.Unix() - int64(buffer/time.Second)
	return time.Duration(max(0, secs)) * time.Second, true
}
