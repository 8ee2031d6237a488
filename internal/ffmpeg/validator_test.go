// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package ffmpeg

import (
	"errors"
	"testing"
)

func TestValidator(t *testing.T) {
	v, err := NewValidator([]string{`^/media/`, " "}, []string{`\.\.`, `^/media/private/`})
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]bool{
		"/media/a.mp4":         true,
		"/media/x/../b.mp4":    true,
		"/media/private/c.mp4": false,
		"/media/../etc/passwd": false,
		"/tmp/a.mp4":           false,
		"":                     false,
	}
	for path, want := range tests {
		if got := v.IsValid(path); got != want {
			t.Errorf("IsValid(%q) = %v, want %v", path, got, want)
		}
	}

	if err := v.Check("/tmp/a.mp4"); !errors.Is(err, ErrPathNotAllowed) {
		t.Errorf("Check = %v", err)
	}
	if err := v.Check("/media/a.mp4"); err != nil {
		t.Errorf("Check = %v", err)
	}
}

func TestValidatorAllowsAllByDefault(t *testing.T) {
	v, _ := NewValidator(nil, nil)
	if !v.IsValid("relative/clip.mov") {
		t.Error("empty validator rejected a path")
	}
}

func TestValidatorBadExpression(t *testing.T) {
	if _, err := NewValidator([]string{"("}, nil); err == nil {
		t.Error("expected compile error")
	}
}
