// Package scripting caches the scripts loaded by clients, by SHA1 digest.
package scripting

import (
	"crypto/sha1"
	"fmt"
	"strings"
)

// Script is a loaded script body and its compiled form.
type Script struct {
	SHA      string
	Body     string
	compiled []string
}

// Cache maps script digests to loaded scripts.
type Cache struct {
	scripts map[string]*Script
}

func NewCache() *Cache {
	return &Cache{scripts: map[string]*Script{}}
}

// Digest returns the hex SHA1 of body, the key scripts are cached under.
func Digest(body string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(body)))
}

func (c *Cache) Len() int {
	return len(c.scripts)
}

// Load compiles body, caches it and returns its digest. Loading the same
// body twice keeps the first copy.
func (c *Cache) Load(body string) string {
	sha := Digest(body)
	if _, ok := c.scripts[sha]; ok {
		return sha
	}
	c.scripts[sha] = &Script{
		SHA:      sha,
		Body:     body,
		compiled: compile(body),
	}
	return sha
}

func (c *Cache) Get(sha string) (*Script, bool) {
	s, ok := c.scripts[strings.ToLower(sha)]
	return s, ok
}

func (c *Cache) Exists(sha string) bool {
	_, ok := c.Get(sha)
	return ok
}

// Release drops every cached script.
func (c *Cache) Release() {
	for sha, s := range c.scripts {
		s.compiled = nil
		delete(c.scripts, sha)
	}
	c.scripts = nil
}

func compile(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
