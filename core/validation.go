// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"net/url"
	"strings"
)

// Result count bounds for planned store queries.
const (
	MinResultCount     = 1
	MaxResultCount     = 20
	DefaultResultCount = 5
)

// ValidateChunk validates a Chunk before it is written to the store.
//
// Validation rules:
//   - Text must not be empty
//   - Vector must not be empty
//
// NOT validated:
//   - ID (derived from Text when zero)
//   - Metadata (may be empty for text inserted outside a session)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: vector is empty", ErrInvalidChunk)
	}

	return nil
}

// ClampResultCount bounds a planned result count to [MinResultCount, MaxResultCount].
// Zero means the oracle left it unset and becomes DefaultResultCount.
func ClampResultCount(n int) int {
	switch {
	case n == 0:
		return DefaultResultCount
	case n < MinResultCount:
		return MinResultCount
	case n > MaxResultCount:
		return MaxResultCount
	default:
		return n
	}
}

// NormalizeURL validates that raw is an absolute http(s) URL and returns it
// without its fragment.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	u.Fragment = ""
	return u.String(), nil
}
