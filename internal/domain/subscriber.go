package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Validation errors for subscriber input. Both are client errors.
var (
	ErrInvalidEmail = errors.New("invalid subscriber email")
	ErrInvalidName  = errors.New("invalid subscriber name")
)

// maxNameRunes bounds subscriber display names.
const maxNameRunes = 256

// forbiddenNameChars are rejected in names: they have no business being in a
// display name and tend to show up in injection probes.
const forbiddenNameChars = `/()"<>\{}`

// ParseSubscriberEmail validates a delivery address. The check is deliberately
// shallow (non-empty, no whitespace, exactly one '@' with a non-empty local
// part and domain): the confirmation email is the real proof of deliverability.
func ParseSubscriberEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	if strings.ContainsAny(email, " \t\n") {
		return "", fmt.Errorf("%w: contains whitespace", ErrInvalidEmail)
	}
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") || at == len(email)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

// ParseSubscriberName validates and NFC-normalizes a display name. It rejects
// empty/whitespace-only input, names longer than 256 characters, and names
// containing any of /()"<>\{}.
func ParseSubscriberName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	// Normalize before counting so composed and decomposed input behave alike.
	name = norm.NFC.String(name)
	if utf8.RuneCountInString(name) > maxNameRunes {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameRunes)
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return "", fmt.Errorf("%w: forbidden character", ErrInvalidName)
	}
	return name, nil
}
