package fixloop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// generateRunID creates a unique, time-ordered run ID.
func generateRunID(timestamp time.Time, studyID string) string {
	ts := timestamp.UTC().Format("20060102T150405Z")

	input := fmt.Sprintf("%s|%d", studyID, timestamp.UnixNano())
	hash := sha256.Sum256([]byte(input))
	shortHash := hex.EncodeToString(hash[:3])

	return fmt.Sprintf("run-%s-%s", ts, shortHash)
}
