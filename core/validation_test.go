package core

import (
	"errors"
	"testing"
)

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr error
	}{
		{
			name:    "valid chunk",
			chunk:   &Chunk{Text: "Season five premiered in 2025.", Vector: []float32{0.1, 0.2}},
			wantErr: nil,
		},
		{
			name:    "valid chunk with ID 0 and no metadata",
			chunk:   &Chunk{Id: 0, Text: "text", Vector: []float32{1}},
			wantErr: nil,
		},
		{
			name:    "nil chunk",
			chunk:   nil,
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "whitespace text",
			chunk:   &Chunk{Text: "  \n", Vector: []float32{1}},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "missing vector",
			chunk:   &Chunk{Text: "text"},
			wantErr: ErrInvalidChunk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() unexpected error = %v", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateChunk() expected error %v, got nil", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want error wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestClampResultCount(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultResultCount},
		{-3, MinResultCount},
		{1, 1},
		{7, 7},
		{20, 20},
		{50, MaxResultCount},
	}

	for _, tt := range tests {
		if got := ClampResultCount(tt.in); got != tt.want {
			t.Errorf("ClampResultCount(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "https", in: "https://example.com/a", want: "https://example.com/a"},
		{name: "strips fragment", in: "http://example.com/a#section", want: "http://example.com/a"},
		{name: "trims space", in: "  https://example.com ", want: "https://example.com"},
		{name: "ftp rejected", in: "ftp://example.com/file", wantErr: true},
		{name: "relative rejected", in: "/just/a/path", wantErr: true},
		{name: "mailto rejected", in: "mailto:someone@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("NormalizeURL(%q) error = %v, want ErrInvalidURL", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOracleError(t *testing.T) {
	err := error(&OracleError{Op: "evaluate", Err: ErrInvalidNextStep})

	if !errors.Is(err, ErrInvalidNextStep) {
		t.Error("OracleError should unwrap to its cause")
	}

	var oe *OracleError
	if !errors.As(err, &oe) || oe.Op != "evaluate" {
		t.Error("errors.As should find the OracleError")
	}
}
