package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ValidateRemoteJID validates a remote contact identifier.
func ValidateRemoteJID(jid string) error {
	if strings.TrimSpace(jid) == "" {
		return errors.New("remotejid cannot be empty")
	}
	if len(jid) > 128 {
		return errors.New("remotejid exceeds maximum length")
	}
	if !utf8.ValidString(jid) {
		return errors.New("remotejid must be valid UTF-8")
	}
	return nil
}

// ValidateReason validates a pause reason at the request boundary.
// The controller enforces presence again before any side effect.
func ValidateReason(reason string) error {
	if len(reason) > 512 {
		return errors.New("reason exceeds maximum length")
	}
	if !utf8.ValidString(reason) {
		return errors.New("reason must be valid UTF-8")
	}
	return nil
}

// ValidateInstanceName validates a messaging-instance name.
func ValidateInstanceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("instance name cannot be empty")
	}
	if len(name) > 64 {
		return errors.New("instance name exceeds maximum length")
	}
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		return errors.New("instance name must contain only lowercase letters, digits, hyphens and underscores")
	}
	return nil
}

// ValidateFileName validates a knowledge-base file name.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("file name cannot be empty")
	}
	if len(name) > 256 {
		return errors.New("file name exceeds maximum length")
	}
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		return errors.New("file name must not contain path separators")
	}
	return nil
}
