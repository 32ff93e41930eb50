package core

import "testing"

func TestVerifyPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !VerifyPassword("pw123", hash) {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestVerifyPasswordAbsentHash(t *testing.T) {
	// Google-only principals store no hash; no password may ever match.
	for _, pw := range []string{"", "pw123", "anything at all"} {
		if VerifyPassword(pw, "") {
			t.Fatalf("password %q accepted against absent hash", pw)
		}
	}
}
