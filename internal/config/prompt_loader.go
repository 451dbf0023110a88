package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"resumeanalyzer/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// PromptKind identifies one of the customizable prompt templates.
type PromptKind string

const (
	PromptGenerate PromptKind = "generate"
	PromptValidate PromptKind = "validate"
)

// loadedPromptStore holds prompt content loaded from external files.
// File content takes priority over inline config values.
type loadedPromptStore struct {
	mu      sync.RWMutex
	prompts map[PromptKind]string
}

var loadedPrompts = &loadedPromptStore{
	prompts: make(map[PromptKind]string),
}

func (s *loadedPromptStore) set(kind PromptKind, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[kind] = content
}

func (s *loadedPromptStore) get(kind PromptKind) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts[kind]
}

// GetLoadedPrompt returns the file-loaded override for a prompt kind,
// or empty when none is loaded.
func GetLoadedPrompt(kind PromptKind) string {
	return loadedPrompts.get(kind)
}

// ResolvePrompt selects the prompt template by priority:
// 1. content loaded from a file, 2. inline config value, 3. built-in default.
func (c *Config) ResolvePrompt(kind PromptKind, fallback string) string {
	if loaded := GetLoadedPrompt(kind); loaded != "" {
		return loaded
	}
	var inline string
	switch kind {
	case PromptGenerate:
		inline = c.AI.CustomPrompts.Generate
	case PromptValidate:
		inline = c.AI.CustomPrompts.Validate
	}
	if inline != "" {
		return inline
	}
	return fallback
}

// loadPromptsFromFiles reads prompt template files referenced by the config.
func (c *Config) loadPromptsFromFiles() error {
	files := c.promptFiles()
	for kind, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s prompt file %s: %w", kind, path, err)
		}
		if len(content) == 0 {
			return fmt.Errorf("%s prompt file %s is empty", kind, path)
		}
		loadedPrompts.set(kind, string(content))
	}
	return nil
}

func (c *Config) promptFiles() map[PromptKind]string {
	files := make(map[PromptKind]string)
	if c.AI.CustomPrompts.GenerateFile != "" {
		files[PromptGenerate] = c.AI.CustomPrompts.GenerateFile
	}
	if c.AI.CustomPrompts.ValidateFile != "" {
		files[PromptValidate] = c.AI.CustomPrompts.ValidateFile
	}
	return files
}

// PromptWatcher reloads prompt template files when they change on disk.
type PromptWatcher struct {
	watcher *fsnotify.Watcher
	config  *Config
	logger  *errors.Logger
	done    chan struct{}
}

// NewPromptWatcher starts watching the configured prompt files.
// Returns nil when watching is disabled or no prompt files are configured.
func NewPromptWatcher(cfg *Config, logger *errors.Logger) (*PromptWatcher, error) {
	if !cfg.AI.CustomPrompts.WatchPromptFiles {
		return nil, nil
	}
	files := cfg.promptFiles()
	if len(files) == 0 {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt file watcher: %w", err)
	}

	// Watch directories rather than files so editors that replace files
	// (rename + create) keep triggering events.
	dirs := make(map[string]struct{})
	for _, path := range files {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch prompt directory %s: %w", dir, err)
		}
	}

	pw := &PromptWatcher{
		watcher: watcher,
		config:  cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go pw.run(files)

	logger.Info("Prompt file watching enabled", "files", len(files))
	return pw, nil
}

func (pw *PromptWatcher) run(files map[PromptKind]string) {
	byPath := make(map[string]PromptKind, len(files))
	for kind, path := range files {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		byPath[abs] = kind
	}

	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				abs = event.Name
			}
			kind, watched := byPath[abs]
			if !watched {
				continue
			}
			pw.reload(kind, abs)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Warn("Prompt file watcher error", "error", err.Error())
		case <-pw.done:
			return
		}
	}
}

func (pw *PromptWatcher) reload(kind PromptKind, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		pw.logger.LogError(err, "Failed to reload prompt file, keeping previous content",
			"prompt", string(kind), "file", path)
		return
	}
	if len(content) == 0 {
		pw.logger.Warn("Ignoring empty prompt file on reload",
			"prompt", string(kind), "file", path)
		return
	}
	loadedPrompts.set(kind, string(content))
	pw.logger.Info("Prompt template reloaded",
		"prompt", string(kind), "file", path, "bytes", len(content))
}

// Close stops the watcher.
func (pw *PromptWatcher) Close() error {
	if pw == nil {
		return nil
	}
	close(pw.done)
	return pw.watcher.Close()
}
