// Package pagination implements opaque keyset cursors over (created_at, id).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size used when the caller does not set one.
	DefaultLimit = 25
	// MaxLimit caps the rows any single page may request.
	MaxLimit = 100
)

// Params holds the pagination inputs accepted by list operations.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor pins the position of the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], substituting DefaultLimit
// for zero or negative values.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is the normalized limit plus one sentinel row, used to
// detect whether a further page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor serializes a cursor into its opaque wire form.
func EncodeCursor(cursor Cursor) string {
	cursor.CreatedAt = cursor.CreatedAt.UTC()
	payload, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(payload)
}

// ParseCursor decodes an opaque cursor. An empty value yields a nil cursor
// and no error, meaning "first page".
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if cursor.ID == uuid.Nil || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("incomplete cursor")
	}
	return &cursor, nil
}
