package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/models"
)

// Fingerprint hashes the evidence window in loaded order. Any edit, insertion
// or removal of a comment in the window changes the result. Each field is
// length-prefixed so comment text cannot forge a boundary between comments.
func Fingerprint(comments []models.Comment) string {
	h := sha256.New()
	for _, c := range comments {
		ts := c.CreatedAt.UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(h, "%d:%s:%d:%s|", len(ts), ts, len(c.Text), c.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}
