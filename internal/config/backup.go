package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SnapshotSettings copies the settings file into the backup git repository
// and commits it. The repository is created on first use; retention is the
// commit history itself.
func SnapshotSettings(s *Settings, settingsPath string) error {
	dir := s.Backup.Dir
	if dir == "" {
		return fmt.Errorf("backup dir not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	repo, err := git.PlainOpen(dir)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(dir, false)
	}
	if err != nil {
		return fmt.Errorf("open backup repo: %w", err)
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return fmt.Errorf("read settings for backup: %w", err)
	}
	name := filepath.Base(settingsPath)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write backup copy: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("backup worktree: %w", err)
	}
	if _, err := wt.Add(name); err != nil {
		return fmt.Errorf("stage backup: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("backup status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	_, err = wt.Commit(fmt.Sprintf("settings snapshot %s", time.Now().UTC().Format(time.RFC3339)), &git.CommitOptions{
		Author: &object.Signature{
			Name:  "llmgate",
			Email: "llmgate@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit backup: %w", err)
	}
	return nil
}

// ListBackups returns the snapshot commit times, newest first, capped by max.
func ListBackups(dir string, max int) ([]time.Time, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, nil
		}
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []time.Time
	for {
		c, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, c.Author.When)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}
