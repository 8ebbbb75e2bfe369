package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims s, collapses inner whitespace runs to a single space and optionally lowers it.
// Roll numbers, emails and configured period names all go through it.
func CleanString(s string, lower ...bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(lower) > 0 && lower[0] {
		s = strings.ToLower(s)
	}
	return s
}

// Getwd returns the directory config files are looked up from: $WORKDIR when set,
// else the closest ancestor of the working directory holding go.mod (tests run
// from their package directory), else the working directory itself.
func Getwd() string {
	if dir := os.Getenv("WORKDIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	for dir := wd; ; {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd
		}
		dir = parent
	}
}
