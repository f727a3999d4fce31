package aws

import (
	"canvas-editor/core"
	"errors"
	"testing"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		namespace string
		key       string
		want      string
		wantErr   bool
	}{
		{"alice", "currentProject", "alice/currentProject", false},
		{"", "user", "", true},
		{"alice", "", "", true},
		{"..", "user", "", true},
		{"alice", "../bob", "", true},
		{"a/b", "user", "", true},
	}
	for _, tt := range tests {
		got, err := objectKey(tt.namespace, tt.key)
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidKey) {
				t.Errorf("objectKey(%q, %q) error = %v, want ErrInvalidKey", tt.namespace, tt.key, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("objectKey(%q, %q) = %q, %v; want %q", tt.namespace, tt.key, got, err, tt.want)
		}
	}
}
