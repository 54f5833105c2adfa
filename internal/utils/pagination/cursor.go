package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidToken is returned for tokens this package did not produce.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is the opaque keyset pagination state we encode/decode.
// CreatedUnix (millis) + ID establish a stable position in a newest-first list.
type Cursor struct {
	ID          string `json:"id"`
	CreatedUnix int64  `json:"created_unix,omitempty"`
}

// After builds the cursor pointing past a row.
func After(id string, createdAt time.Time) Cursor {
	return Cursor{ID: id, CreatedUnix: createdAt.UnixMilli()}
}

// Time is the cursor position as a UTC instant.
func (c Cursor) Time() time.Time { return time.UnixMilli(c.CreatedUnix).UTC() }

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool { return c.ID == "" && c.CreatedUnix == 0 }

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}
