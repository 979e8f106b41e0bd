package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	sink := &collector{}

	s := New(path, clockwork.NewFakeClock())
	ch := s.CreateChannel("testchannel", testEmotes("pog", "KEKW"), &stubIdentity{}, sink.publish)
	ch.apply(event("testchannel", "alice", "pog pog KEKW"))
	ch.apply(event("testchannel", "bob", "pog"))
	require.NoError(t, s.Save())

	restored := New(path, clockwork.NewFakeClock())
	restored.Load()
	ch2 := restored.CreateChannel("testchannel", testEmotes("pog", "KEKW"), &stubIdentity{}, sink.publish)

	users := ch2.Users()
	require.Len(t, users, 2)
	byName := map[string]int{}
	for _, u := range users {
		byName[u.Username] = u.Count
	}
	assert.Equal(t, map[string]int{"alice": 3, "bob": 1}, byName)

	// channel tally is rebuilt from the restored user records
	assert.Equal(t, map[string]int{"pog": 3, "KEKW": 1}, ch2.Snapshot().EmoteUsage)
}

func TestPersistence_AbsentFileIsEmptyState(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"), clockwork.NewFakeClock())
	s.Load()

	assert.Empty(t, s.InitSnapshot())
}

func TestPersistence_CorruptFileIsEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(path, clockwork.NewFakeClock())
	s.Load()

	sink := &collector{}
	ch := s.CreateChannel("testchannel", testEmotes("pog"), &stubIdentity{}, sink.publish)
	assert.Empty(t, ch.Users())
}

func TestPersistence_UntrackedChannelsSurviveSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	sink := &collector{}

	s := New(path, clockwork.NewFakeClock())
	ch := s.CreateChannel("oldchannel", testEmotes("pog"), &stubIdentity{}, sink.publish)
	ch.apply(event("oldchannel", "alice", "pog"))
	require.NoError(t, s.Save())

	// new process tracks a different channel; the old one must be kept
	s2 := New(path, clockwork.NewFakeClock())
	s2.Load()
	s2.CreateChannel("newchannel", testEmotes("KEKW"), &stubIdentity{}, sink.publish)
	require.NoError(t, s2.Save())

	s3 := New(path, clockwork.NewFakeClock())
	s3.Load()
	ch3 := s3.CreateChannel("oldchannel", testEmotes("pog"), &stubIdentity{}, sink.publish)
	users := ch3.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestRunSaver_FlushesOnTickAndShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	clock := clockwork.NewFakeClock()
	sink := &collector{}

	s := New(path, clock)
	ch := s.CreateChannel("testchannel", testEmotes("pog"), &stubIdentity{}, sink.publish)
	ch.apply(event("testchannel", "alice", "pog"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunSaver(ctx, time.Minute)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("saver did not stop")
	}
}
