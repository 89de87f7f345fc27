package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CachedProvider memoizes completions in an append-only JSONL file so
// interrupted runs resume without re-spending API calls. The file format is
// one {"prompt": ..., "completion": ...} object per line, keyed by the
// canonical JSON of the request.
type CachedProvider struct {
	inner Provider
	path  string

	mu      sync.Mutex
	entries map[string]string
	file    *os.File
}

type cacheLine struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

func WithCache(inner Provider, cacheDir string) (*CachedProvider, error) {
	cacheDir = strings.TrimSpace(cacheDir)
	if cacheDir == "" {
		cacheDir = "cache"
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("llm: cache: create dir: %w", err)
	}

	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', ' ':
			return '_'
		}
		return r
	}, inner.Name()+"-"+inner.Model())
	path := filepath.Join(cacheDir, name+".jsonl")

	entries, err := loadCacheFile(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("llm: cache: open %q: %w", path, err)
	}

	return &CachedProvider{
		inner:   inner,
		path:    path,
		entries: entries,
		file:    f,
	}, nil
}

func (c *CachedProvider) Name() string  { return c.inner.Name() }
func (c *CachedProvider) Model() string { return c.inner.Model() }

// Path returns the backing cache file location.
func (c *CachedProvider) Path() string { return c.path }

func (c *CachedProvider) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

func (c *CachedProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	key, err := cacheKey(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	text, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return &Response{Text: text, Cached: true}, nil
	}

	resp, err := c.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp.Text
	if c.file != nil {
		line, err := json.Marshal(cacheLine{Prompt: key, Completion: resp.Text})
		if err != nil {
			return resp, nil
		}
		if _, err := c.file.Write(append(line, '\n')); err != nil {
			return resp, fmt.Errorf("llm: cache: append: %w", err)
		}
	}
	return resp, nil
}

func cacheKey(req *Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("llm: cache: nil request")
	}
	b, err := json.Marshal(struct {
		Messages []Message `json:"messages"`
		System   string    `json:"system,omitempty"`
	}{Messages: req.Messages, System: req.System})
	if err != nil {
		return "", fmt.Errorf("llm: cache: marshal key: %w", err)
	}
	return string(b), nil
}

func loadCacheFile(path string) (map[string]string, error) {
	out := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("llm: cache: open %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry cacheLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// A torn final line from a crashed run is not fatal.
			continue
		}
		out[entry.Prompt] = entry.Completion
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("llm: cache: read %q: %w", path, err)
	}
	return out, nil
}
