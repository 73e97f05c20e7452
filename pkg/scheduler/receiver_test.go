//go:build !noics

package scheduler

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/store"
)

func remoteVersion(t *testing.T, uid string, seq uint32) *conference.Info {
	t.Helper()
	info := standup(t, bob, carol)
	require.NoError(t, info.SetURI(confURI))
	require.NoError(t, info.SetOrganizerAddress(dave))
	require.NoError(t, info.SetIcsUID(uid))
	require.NoError(t, info.SetIcsSequence(seq))
	return info
}

func icsBody(t *testing.T, info *conference.Info) []byte {
	t.Helper()
	data, err := info.MarshalICS(false, -1)
	require.NoError(t, err)
	return []byte(data)
}

func TestReceiverDropsStaleUpdates(t *testing.T) {
	reg := prometheus.NewRegistry()
	mem := store.NewMemory()
	r := NewReceiver(testAccount, mem, WithMetrics(NewMetrics(reg)))
	ctx := context.Background()

	got, err := r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:remote", 0)))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), got.IcsSequence())
	assert.True(t, got.IsAllocated())

	// повтор той же версии
	_, err = r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:remote", 0)))
	assert.ErrorIs(t, err, ErrStaleUpdate)

	// версии пришли не по порядку: 2, затем 1
	_, err = r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:remote", 2)))
	require.NoError(t, err)
	_, err = r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:remote", 1)))
	require.ErrorIs(t, err, ErrStaleUpdate)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "STALE_UPDATE", se.Code)
	assert.Equal(t, uint32(1), se.Fields["incoming_sequence"])
	assert.Equal(t, uint32(2), se.Fields["stored_sequence"])

	stored, err := mem.Find(ctx, testAccount.Key(), confURI)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stored.IcsSequence())

	families, err := reg.Gather()
	require.NoError(t, err)
	var stale float64
	for _, fam := range families {
		if fam.GetName() == "conference_scheduler_stale_updates_total" {
			stale = fam.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), stale)
}

func TestReceiverAcceptsNewDocumentForSameAddress(t *testing.T) {
	mem := store.NewMemory()
	r := NewReceiver(testAccount, mem)
	ctx := context.Background()

	_, err := r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:first", 5)))
	require.NoError(t, err)

	got, err := r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:second", 0)))
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:second", got.IcsUID())
	assert.Equal(t, uint32(0), got.FindParticipant(bob).SequenceNumber())
}

func TestReceiverTracksParticipantSequences(t *testing.T) {
	mem := store.NewMemory()
	r := NewReceiver(testAccount, mem)
	ctx := context.Background()

	_, err := r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:remote", 0)))
	require.NoError(t, err)

	next := remoteVersion(t, "urn:uuid:remote", 1)
	require.NoError(t, next.RemoveParticipant(carol))
	require.NoError(t, next.AddParticipantAddress(alice))
	got, err := r.Receive(ctx, "text/calendar; method=REQUEST; charset=utf-8", icsBody(t, next))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), got.FindParticipant(bob).SequenceNumber())
	assert.Equal(t, uint32(0), got.FindParticipant(alice).SequenceNumber())
	assert.False(t, got.HasParticipant(carol))
}

func TestReceiverRejectsInput(t *testing.T) {
	noURI := standup(t, bob)
	require.NoError(t, noURI.SetOrganizerAddress(dave))

	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantErr     error
		category    ErrorCategory
	}{
		{"чужой тип содержимого", "application/sdp", []byte("v=0"), ErrUnsupportedContent, ErrorCategoryValidation},
		{"битый тип содержимого", "text/calendar; =", []byte("x"), ErrUnsupportedContent, ErrorCategoryValidation},
		{"пустое тело", conference.ContentType, nil, conference.ErrEmptyICS, ErrorCategoryValidation},
		{"не iCalendar", conference.ContentType, []byte("hello"), conference.ErrMalformedICS, ErrorCategoryValidation},
		{"без адреса конференции", conference.ContentType, icsBody(t, noURI), ErrNoConferenceAddress, ErrorCategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReceiver(testAccount, store.NewMemory())
			_, err := r.Receive(context.Background(), tt.contentType, tt.body)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.category, CategoryOf(err))
		})
	}
}

func TestReceiverKeepsCancelledCopy(t *testing.T) {
	mem := store.NewMemory()
	r := NewReceiver(testAccount, mem)
	ctx := context.Background()

	cancelled := remoteVersion(t, "urn:uuid:remote", 3)
	require.NoError(t, cancelled.SetState(conference.StateCancelled))
	got, err := r.Receive(ctx, conference.ContentType, icsBody(t, cancelled))
	require.NoError(t, err)
	assert.Equal(t, conference.StateCancelled, got.State())

	_, err = r.Receive(ctx, conference.ContentType, icsBody(t, remoteVersion(t, "urn:uuid:remote", 4)))
	assert.ErrorIs(t, err, conference.ErrInfoCancelled)

	stored, err := mem.Find(ctx, testAccount.Key(), confURI)
	require.NoError(t, err)
	assert.Equal(t, conference.StateCancelled, stored.State())
}
