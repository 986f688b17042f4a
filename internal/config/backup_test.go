package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotAndListBackups(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "config.yaml")
	backupDir := filepath.Join(dir, "backups")

	s := &Settings{ForwardToken: "ccr_a", Backup: BackupConfig{Dir: backupDir}}
	require.NoError(t, Save(settingsPath, s))
	require.NoError(t, SnapshotSettings(s, settingsPath))

	// unchanged settings produce no second commit
	require.NoError(t, SnapshotSettings(s, settingsPath))

	commits, err := ListBackups(backupDir, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)

	s.ForwardToken = "ccr_b"
	require.NoError(t, Save(settingsPath, s))
	require.NoError(t, SnapshotSettings(s, settingsPath))

	commits, err = ListBackups(backupDir, 10)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	// newest first
	require.False(t, commits[0].Before(commits[1]))
}

func TestListBackupsNoRepo(t *testing.T) {
	commits, err := ListBackups(filepath.Join(t.TempDir(), "nope"), 5)
	require.NoError(t, err)
	require.Empty(t, commits)
}
