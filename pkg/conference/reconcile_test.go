package conference

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateFromSequenceMonotonic(t *testing.T) {
	stored := newTestInfo(t, bob)
	require.NoError(t, stored.SetIcsUID("urn:uuid:abc"))

	for edit := 1; edit <= 5; edit++ {
		next := newTestInfo(t, bob)
		// разные поля в каждой правке, номер версии от этого не зависит
		switch edit % 3 {
		case 0:
			require.NoError(t, next.SetSubject("renamed"))
		case 1:
			require.NoError(t, next.SetDuration(uint(edit*15)))
		case 2:
			require.NoError(t, next.AddParticipantAddress(carol))
		}
		// устаревший номер в новом описании игнорируется
		require.NoError(t, next.SetIcsSequence(1))

		require.NoError(t, next.UpdateFrom(stored))
		assert.Equal(t, uint32(edit), next.IcsSequence())
		assert.Equal(t, "urn:uuid:abc", next.IcsUID())
		assert.Equal(t, StateUpdated, next.State())
		stored = next
	}
}

func TestUpdateFromPreservesParticipantSequence(t *testing.T) {
	old := newTestInfo(t, bob, carol)
	old.participants[0].sequence = 4
	old.participants[1].sequence = 2
	old.organizer.sequence = 6

	next := newTestInfo(t, carol, bob, focus)
	require.NoError(t, next.UpdateFrom(old))

	assert.Equal(t, uint32(4), next.FindParticipant(bob).SequenceNumber())
	assert.Equal(t, uint32(2), next.FindParticipant(carol).SequenceNumber())
	assert.Equal(t, uint32(0), next.FindParticipant(focus).SequenceNumber())
	assert.Equal(t, uint32(6), next.Organizer().SequenceNumber())
}

func TestUpdateFromIdentity(t *testing.T) {
	old := newTestInfo(t, bob)
	require.NoError(t, old.SetIcsUID("urn:uuid:old"))
	require.NoError(t, old.SetURI(focus))

	t.Run("пустая идентичность берется из old", func(t *testing.T) {
		next := newTestInfo(t, bob)
		require.NoError(t, next.UpdateFrom(old))
		assert.Equal(t, "urn:uuid:old", next.IcsUID())
		assert.True(t, next.URI().WeakEqual(focus))
	})

	t.Run("другой UID", func(t *testing.T) {
		next := newTestInfo(t, bob)
		require.NoError(t, next.SetIcsUID("urn:uuid:other"))
		err := next.UpdateFrom(old)
		assert.ErrorIs(t, err, ErrIdentityMismatch)
		assert.Equal(t, uint32(0), next.IcsSequence())
		assert.Equal(t, StateNew, next.State())
	})

	t.Run("другой URI", func(t *testing.T) {
		next := newTestInfo(t, bob)
		require.NoError(t, next.SetURI(carol))
		assert.ErrorIs(t, next.UpdateFrom(old), ErrIdentityMismatch)
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, NewInfo().UpdateFrom(nil), ErrNilInfo)
	})
}

// UID не меняется ни при согласовании, ни при сериализации
func TestUIDStableAcrossEdits(t *testing.T) {
	info := newTestInfo(t, bob)
	require.NoError(t, info.SetIcsUID("urn:uuid:stable"))

	for range 3 {
		next := newTestInfo(t, bob, carol)
		require.NoError(t, next.UpdateFrom(info))
		info = next
	}
	assert.Equal(t, "urn:uuid:stable", info.IcsUID())
}

func TestUpdateFromSecurityLevelLock(t *testing.T) {
	old := newTestInfo(t, bob)
	require.NoError(t, old.SetSecurityLevel(SecurityLevelEndToEnd))
	old.MarkAllocated()

	next := newTestInfo(t, bob)
	assert.ErrorIs(t, next.UpdateFrom(old), ErrSecurityLevelLocked)

	require.NoError(t, next.SetSecurityLevel(SecurityLevelEndToEnd))
	require.NoError(t, next.UpdateFrom(old))
	assert.True(t, next.IsAllocated())
}

func TestUpdateFromCancelledOld(t *testing.T) {
	old := newTestInfo(t, bob)
	require.NoError(t, old.SetState(StateCancelled))
	assert.ErrorIs(t, newTestInfo(t, bob).UpdateFrom(old), ErrInfoCancelled)
}

func TestUpdateFromKeepsCancelledState(t *testing.T) {
	old := newTestInfo(t, bob)
	next := old.Clone()
	require.NoError(t, next.SetState(StateCancelled))
	require.NoError(t, next.UpdateFrom(old))
	assert.Equal(t, StateCancelled, next.State())
	assert.Equal(t, uint32(1), next.IcsSequence())
}

func TestRemovedSince(t *testing.T) {
	old := newTestInfo(t, bob, carol)
	old.participants[0].sequence = 5
	next := newTestInfo(t, carol)

	removed := next.RemovedSince(old)
	require.Len(t, removed, 1)
	assert.True(t, removed[0].Address().WeakEqual(bob))
	assert.Equal(t, uint32(5), removed[0].SequenceNumber())

	assert.Nil(t, next.RemovedSince(nil))
}

func TestIsNewerThan(t *testing.T) {
	stored := NewInfo()
	require.NoError(t, stored.SetIcsUID("urn:uuid:1"))
	require.NoError(t, stored.SetIcsSequence(2))

	tests := []struct {
		name string
		uid  string
		seq  uint32
		want bool
	}{
		{"больший номер", "urn:uuid:1", 3, true},
		{"тот же номер", "urn:uuid:1", 2, false},
		{"меньший номер", "urn:uuid:1", 1, false},
		{"другой документ", "urn:uuid:2", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incoming := NewInfo()
			require.NoError(t, incoming.SetIcsUID(tt.uid))
			require.NoError(t, incoming.SetIcsSequence(tt.seq))
			assert.Equal(t, tt.want, incoming.IsNewerThan(stored))
		})
	}
	assert.True(t, stored.IsNewerThan(nil))
}

func TestSnapshotRoundTrip(t *testing.T) {
	info := newTestInfo(t, bob, carol)
	require.NoError(t, info.SetURI(focus))
	require.NoError(t, info.SetIcsUID("urn:uuid:snap"))
	require.NoError(t, info.SetIcsSequence(7))
	require.NoError(t, info.SetSubject("Standup"))
	require.NoError(t, info.SetDescription("Daily"))
	require.NoError(t, info.SetDateTime(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)))
	require.NoError(t, info.SetDuration(45))
	require.NoError(t, info.SetSecurityLevel(SecurityLevelPointToPoint))
	require.NoError(t, info.SetState(StateUpdated))
	require.NoError(t, info.AddExtraProperty(ExtraProperty{Name: "X-ROOM", Value: "7"}))
	info.MarkAllocated()
	info.participants[1].sequence = 3
	require.NoError(t, info.participants[1].AddParameter("ROLE", "CHAIR"))
	require.NoError(t, info.participants[1].AddParameter("MEMBER", "sip:g1@example.com", "sip:g2@example.com"))
	info.organizer.sequence = 8

	raw, err := json.Marshal(info.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	restored, err := FromSnapshot(snap)
	require.NoError(t, err)

	assert.Equal(t, info.Snapshot(), restored.Snapshot())
	assert.Equal(t, uint32(3), restored.FindParticipant(carol).SequenceNumber())
	assert.Equal(t, uint32(8), restored.Organizer().SequenceNumber())
	assert.True(t, restored.IsAllocated())
	assert.Equal(t, StateUpdated, restored.State())
}

func TestFromSnapshotInvalid(t *testing.T) {
	_, err := FromSnapshot(Snapshot{State: "Bogus"})
	assert.Error(t, err)

	_, err = FromSnapshot(Snapshot{State: "New", Participants: []ParticipantRecord{{Address: "::"}}})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAdvanceSequences(t *testing.T) {
	old := newTestInfo(t, bob, carol)
	old.participants[0].sequence = 1

	next := newTestInfo(t, bob, focus)
	require.NoError(t, next.UpdateFrom(old))
	next.AdvanceSequences(old)

	assert.Equal(t, uint32(2), next.FindParticipant(bob).SequenceNumber())
	assert.Equal(t, uint32(0), next.FindParticipant(focus).SequenceNumber(), "новый участник")
	assert.Equal(t, uint32(1), next.Organizer().SequenceNumber())

	// первая публикация ничего не увеличивает
	fresh := newTestInfo(t, bob)
	fresh.AdvanceSequences(nil)
	assert.Equal(t, uint32(0), fresh.FindParticipant(bob).SequenceNumber())
}

func TestWithoutParticipants(t *testing.T) {
	info := newTestInfo(t, bob, carol)
	require.NoError(t, info.SetState(StateCancelled))

	stripped := info.WithoutParticipants()
	assert.Zero(t, stripped.ParticipantCount())
	assert.Equal(t, StateCancelled, stripped.State())
	assert.True(t, stripped.OrganizerAddress().WeakEqual(alice))
	assert.Equal(t, 2, info.ParticipantCount())
}
