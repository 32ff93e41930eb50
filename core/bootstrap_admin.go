package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"os"
)

// BootstrapAdmin creates an initial admin when none exists. It is
// idempotent: if any admin already exists, it does nothing.
func BootstrapAdmin(ctx context.Context, repo PrincipalRepository, cfg Config) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}

	has, err := repo.HasAny(ctx, NamespaceAdmin)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	password, err := generatePassword(32)
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	admin := &Principal{
		Name:         "Administrator",
		Email:        cfg.InitialAdminEmail,
		PasswordHash: hash,
		ProfilePic:   NamespaceAdmin.DefaultProfilePic(),
	}
	if err := repo.Create(ctx, NamespaceAdmin, admin); err != nil {
		return err
	}

	if cfg.InitialAdminPasswordPath != "" {
		if err := os.WriteFile(cfg.InitialAdminPasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		log.Printf("initial admin created; credentials written to %s", cfg.InitialAdminPasswordPath)
	} else {
		log.Printf("initial admin created email=%s password=%s", admin.Email, password)
	}

	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
