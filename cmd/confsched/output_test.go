package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/scheduler"
)

func TestPrintConferences(t *testing.T) {
	info := conference.NewInfo()
	require.NoError(t, info.SetURI(address.MustParse("sip:conf-1@example.com")))
	require.NoError(t, info.SetSubject("Standup"))
	require.NoError(t, info.SetDateTime(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)))
	require.NoError(t, info.SetDuration(15))
	require.NoError(t, info.SetIcsSequence(3))
	require.NoError(t, info.AddParticipantAddress(address.MustParse("sip:bob@example.com")))

	var buf bytes.Buffer
	printConferences(&buf, []*conference.Info{info})

	out := buf.String()
	assert.Contains(t, out, "sip:conf-1@example.com")
	assert.Contains(t, out, "Standup")
	assert.Contains(t, out, "2026-03-02T09:30:00Z")
	assert.Contains(t, out, "PARTICIPANTS")
}

func TestPrintResults(t *testing.T) {
	results := []scheduler.InvitationResult{
		{Recipient: address.MustParse("sip:bob@example.com")},
		{Recipient: address.MustParse("sip:carol@example.com"), Cancel: true, Err: errors.New("timeout")},
	}

	var buf bytes.Buffer
	printResults(&buf, results)

	out := buf.String()
	assert.Contains(t, out, "delivered")
	assert.Contains(t, out, conference.MethodCancel)
	assert.Contains(t, out, "timeout")
}
