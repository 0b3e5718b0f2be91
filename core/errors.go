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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyContent indicates a text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyQuery indicates a question or sub-query has no text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidURL indicates a link is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
)

// Oracle response errors
var (
	// ErrMalformedResponse indicates an oracle response could not be parsed
	// into its expected shape.
	ErrMalformedResponse = errors.New("malformed oracle response")

	// ErrInvalidNextStep indicates the evaluator proposed an unknown next step.
	ErrInvalidNextStep = errors.New("invalid next step")

	// ErrInvalidRating indicates the evaluator returned an unknown rating.
	ErrInvalidRating = errors.New("invalid rating")
)

// Transient collaborator errors. These are skipped by the session, never returned.
var (
	// ErrSearch indicates a single search provider call failed.
	ErrSearch = errors.New("search failed")

	// ErrFetch indicates a single page fetch failed.
	ErrFetch = errors.New("fetch failed")
)

// OracleError wraps any failure of a reasoning oracle call.
// Oracle failures end the session.
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}
