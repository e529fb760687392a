package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDependencyRef(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    DependencyRef
		wantErr bool
	}{
		{
			name:  "bare name",
			input: "users",
			want:  DependencyRef{Name: "users", Original: "users"},
		},
		{
			name:  "map with alias and config",
			input: map[string]any{"name": "staff", "original": "users", "config": map[string]any{"pageSize": 20}},
			want:  DependencyRef{Name: "staff", Original: "users", Config: Config{"pageSize": 20}},
		},
		{
			name:  "map without original",
			input: map[string]any{"name": "users"},
			want:  DependencyRef{Name: "users", Original: "users"},
		},
		{
			name:  "struct value",
			input: DependencyRef{Name: "users"},
			want:  DependencyRef{Name: "users", Original: "users"},
		},
		{
			name:    "original without name",
			input:   map[string]any{"original": "users"},
			wantErr: true,
		},
		{
			name:    "empty map",
			input:   map[string]any{},
			wantErr: true,
		},
		{
			name:    "unknown key",
			input:   map[string]any{"name": "users", "version": "1.0"},
			wantErr: true,
		},
		{
			name:    "number",
			input:   42,
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDependencyRef(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDependencyRef() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidDependency) {
					t.Errorf("error %v should wrap ErrInvalidDependency", err)
				}
				var depErr *DependencyError
				if !errors.As(err, &depErr) {
					t.Errorf("error %v should be a *DependencyError", err)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseDependencyRef() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDependencyRefs_Position(t *testing.T) {
	_, err := ParseDependencyRefs([]any{"core", map[string]any{"original": "x"}})
	if err == nil {
		t.Fatal("ParseDependencyRefs() expected error")
	}
	if got := err.Error(); !strings.HasPrefix(got, "modules[1]") {
		t.Errorf("error = %q, want it to start with modules[1]", got)
	}
}

func TestDependencyRef_String(t *testing.T) {
	if got := (DependencyRef{Name: "users"}).String(); got != "users" {
		t.Errorf("String() = %q, want users", got)
	}
	if got := (DependencyRef{Name: "staff", Original: "users"}).String(); got != "staff=users" {
		t.Errorf("String() = %q, want staff=users", got)
	}
	if got := (DependencyRef{Name: "staff", Original: "users"}).Key(); got != "users" {
		t.Errorf("Key() = %q, want users", got)
	}
}
