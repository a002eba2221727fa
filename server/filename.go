package server

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Stored upload names are <user_id>___<video_id>___<original name>, so the
// file itself carries ownership and display metadata.
const filenameSeparator = "___"

// SafeFilename builds the canonical stored name for an upload. Spaces in the
// original name become underscores; everything else is kept.
func SafeFilename(userID, videoID, original string) string {
	name := strings.ReplaceAll(filepath.Base(original), " ", "_")
	return userID + filenameSeparator + videoID + filenameSeparator + name
}

// ParseStoredName splits a stored upload name into its parts.
func ParseStoredName(stored string) (userID, videoID, display string, err error) {
	parts := strings.SplitN(stored, filenameSeparator, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("filename %q does not match user___video___name", stored)
	}
	return parts[0], parts[1], parts[2], nil
}

// DisplayName extracts the human-readable part of a stored name, falling
// back to the whole name for files that never went through ingest.
func DisplayName(stored string) string {
	if _, _, display, err := ParseStoredName(stored); err == nil {
		return display
	}
	return stored
}
