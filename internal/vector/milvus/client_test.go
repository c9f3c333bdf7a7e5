package milvus

import "testing"

func TestBuildFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter map[string]string
		want   string
	}{
		{"nil", nil, ""},
		{"empty", map[string]string{}, ""},
		{"source only", map[string]string{"source": "notes.txt"}, `source == "notes.txt"`},
		{"file type only", map[string]string{"file_type": "html"}, `file_type == "html"`},
		{"both", map[string]string{"source": "a.md", "file_type": "md"}, `source == "a.md" && file_type == "md"`},
		{"blank values ignored", map[string]string{"source": "", "file_type": ""}, ""},
		{"unknown keys ignored", map[string]string{"owner": "alice"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildFilterExpr(tt.filter); got != tt.want {
				t.Errorf("buildFilterExpr(%v) = %q, want %q", tt.filter, got, tt.want)
			}
		})
	}
}
