package utils

import (
	"strings"

	"github.com/google/uuid"
)

const shareIDLength = 10

// NewShareID returns a short random id for public share links.
func NewShareID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shareIDLength]
}
