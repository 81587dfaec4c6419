package utils

import (
	"FireBox/internal/repo"
	"context"
	"time"
)

// Fingerprint existence cache. Negotiation is the hot path: every
// upload asks "does the store already hold these bytes" per part, so
// positive answers are cached in Redis. Entries are only ever written
// after the object has been verified in the store; a miss falls back
// to the database plus a stat against the object store.

func fingerprintKey(fingerprint string) string {
	return "fp:" + fingerprint
}

// SetFingerprintKnown records that a fingerprint's bytes are present
// in the chunk store.
func SetFingerprintKnown(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if repo.Redis == nil {
		return nil
	}
	return repo.Redis.Set(ctx, fingerprintKey(fingerprint), "1", ttl).Err()
}

// IsFingerprintKnown reports whether a fingerprint was recently
// verified present. False means "unknown", not "absent".
func IsFingerprintKnown(ctx context.Context, fingerprint string) bool {
	if repo.Redis == nil {
		return false
	}
	n, err := repo.Redis.Exists(ctx, fingerprintKey(fingerprint)).Result()
	return err == nil && n > 0
}

// InvalidateFingerprint drops a cached fingerprint, used when the GC
// worker removes the backing object.
func InvalidateFingerprint(ctx context.Context, fingerprint string) error {
	if repo.Redis == nil {
		return nil
	}
	return repo.Redis.Del(ctx, fingerprintKey(fingerprint)).Err()
}
