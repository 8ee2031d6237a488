// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoCompressor - FFmpeg WebM 压缩工具

package ffmpeg

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrPathNotAllowed is returned by Validator.Check
var ErrPathNotAllowed = errors.New("path not allowed")

// Validator decides whether a file path may be read or written by a job.
// Paths are cleaned before matching.
type Validator interface {
	IsValid(path string) bool
	Check(path string) error
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator compiles the allow and block expressions. Empty expressions
// are ignored. Block wins over allow; no allow expressions allow everything.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}
	var err error

	if v.allow, err = compile("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compile("block", block); err != nil {
		return nil, err
	}
	return v, nil
}

func compile(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (v *validator) IsValid(path string) bool {
	if path == "" {
		return false
	}
	path = filepath.Clean(path)

	for _, e := range v.block {
		if e.MatchString(path) {
			return false
		}
	}
	if len(v.allow) == 0 {
		return true
	}
	for _, e := range v.allow {
		if e.MatchString(path) {
			return true
		}
	}
	return false
}

func (v *validator) Check(path string) error {
	if !v.IsValid(path) {
		return fmt.Errorf("%w: %s", ErrPathNotAllowed, path)
	}
	return nil
}
