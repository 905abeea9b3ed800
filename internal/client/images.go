package client

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ResolveImage turns an image reference into something the chat API accepts. Remote and data
// URLs are passed through; anything else is read from disk and inlined as a base64 data URL.
func ResolveImage(ref string) (string, error) {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return ref, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("image file not found: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref)))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}

// capImages keeps at most max references and reports how many were dropped. A max of zero
// disables the cap.
func capImages(refs []string, max int) ([]string, int) {
	if max <= 0 || len(refs) <= max {
		return refs, 0
	}
	return refs[:max], len(refs) - max
}
