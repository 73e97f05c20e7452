package sipfocus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/scheduler"
)

type mockReceiver struct {
	mock.Mock
}

func (m *mockReceiver) Receive(ctx context.Context, contentType string, body []byte) (*conference.Info, error) {
	args := m.Called(ctx, contentType, body)
	info, _ := args.Get(0).(*conference.Info)
	return info, args.Error(1)
}

type recordingResponder struct {
	responses []*sip.Response
}

func (r *recordingResponder) Respond(res *sip.Response) error {
	r.responses = append(r.responses, res)
	return nil
}

func inboundMessage(contentType, body string) *sip.Request {
	return newRequest(sip.MESSAGE, bob, alice, bob.URI, contentType, []byte(body))
}

func TestInboundHandlerStatusCodes(t *testing.T) {
	stale := scheduler.NewError("STALE_UPDATE", "stale", scheduler.ErrorCategoryValidation, scheduler.ErrorSeverityWarning).
		WithCause(scheduler.ErrStaleUpdate)
	unsupported := scheduler.NewError("UNSUPPORTED_CONTENT", "bad type", scheduler.ErrorCategoryValidation, scheduler.ErrorSeverityWarning).
		WithCause(scheduler.ErrUnsupportedContent)
	noICS := scheduler.NewError("ICS_UNAVAILABLE", "no ics", scheduler.ErrorCategorySerialization, scheduler.ErrorSeverityWarning).
		WithCause(conference.ErrICSUnavailable)
	invalid := scheduler.NewError("INVALID_CONFERENCE_INFO", "rejected", scheduler.ErrorCategoryValidation, scheduler.ErrorSeverityError).
		WithCause(conference.ErrMalformedICS)

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"принято", nil, 200},
		{"устаревшее", stale, 200},
		{"чужой тип", unsupported, 415},
		{"ICS недоступен", noICS, 415},
		{"битое описание", invalid, 400},
		{"ошибка хранилища", fmt.Errorf("scheduler: save conference: %w", errors.New("disk full")), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receiver := &mockReceiver{}
			var accepted *conference.Info
			if tt.err == nil {
				accepted = conference.NewInfo()
			}
			receiver.On("Receive", mock.Anything, conference.ContentType, []byte("BEGIN:VCALENDAR")).
				Return(accepted, tt.err)

			var notified *conference.Info
			h := NewInboundHandler(receiver, WithOnAccepted(func(info *conference.Info) { notified = info }))
			rec := &recordingResponder{}
			h.serve(inboundMessage(conference.ContentType, "BEGIN:VCALENDAR"), rec)

			require.Len(t, rec.responses, 1)
			assert.Equal(t, tt.wantCode, rec.responses[0].StatusCode)
			if tt.err == nil {
				assert.Same(t, accepted, notified)
			} else {
				assert.Nil(t, notified)
			}
		})
	}
}

func TestInboundHandlerWithoutBody(t *testing.T) {
	receiver := &mockReceiver{}
	receiver.On("Receive", mock.Anything, "", mock.Anything).
		Return(nil, scheduler.NewError("UNSUPPORTED_CONTENT", "bad type", scheduler.ErrorCategoryValidation, scheduler.ErrorSeverityWarning).
			WithCause(scheduler.ErrUnsupportedContent))

	rec := &recordingResponder{}
	NewInboundHandler(receiver).serve(inboundMessage("", ""), rec)

	require.Len(t, rec.responses, 1)
	assert.Equal(t, 415, rec.responses[0].StatusCode)
	receiver.AssertExpectations(t)
}
