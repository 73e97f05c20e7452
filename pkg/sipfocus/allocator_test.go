package sipfocus

import (
	"context"
	"errors"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/scheduler"
)

var (
	alice   = address.MustParse("sip:alice@example.com")
	bob     = address.MustParse("sip:bob@example.com")
	factory = address.MustParse("sip:conference-factory@example.com")
	confURI = address.MustParse("sip:conf-7f3a@example.com")

	testAccount = scheduler.Account{Identity: alice, ConferenceFactory: factory}
)

type mockTransactor struct {
	mock.Mock
}

func (m *mockTransactor) Do(ctx context.Context, req *sip.Request) (*sip.Response, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*sip.Response)
	return res, args.Error(1)
}

func (m *mockTransactor) WriteRequest(req *sip.Request) error {
	return m.Called(req).Error(0)
}

type contactTransactor struct {
	mockTransactor
	tc       TransportConfig
	hostname string
}

func (c *contactTransactor) Contact(user string) (sip.Uri, bool) {
	return contactURI(c.tc, c.hostname, user)
}

func response(code int, reason string, contact *address.Address) *sip.Response {
	res := sip.NewResponse(code, reason)
	if contact != nil {
		res.AppendHeader(&sip.ContactHeader{Address: contact.URI})
	}
	return res
}

func allocationRequest(t *testing.T, withURI, cancel bool) scheduler.AllocationRequest {
	t.Helper()
	info := conference.NewInfo()
	require.NoError(t, info.SetOrganizerAddress(alice))
	require.NoError(t, info.AddParticipantAddress(bob))
	require.NoError(t, info.SetSubject("Standup"))
	if withURI {
		require.NoError(t, info.SetURI(confURI))
	}
	return scheduler.AllocationRequest{
		Info:    info,
		Account: testAccount,
		Cancel:  cancel,
		ICS:     "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n",
	}
}

func TestAllocatorCreatesConferenceThroughFactory(t *testing.T) {
	tx := &mockTransactor{}
	var sent []*sip.Request
	tx.On("Do", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(1).(*sip.Request)) }).
		Return(response(200, "OK", confURI), nil)
	tx.On("WriteRequest", mock.Anything).Return(nil)

	res, err := NewAllocator(tx).Allocate(context.Background(), allocationRequest(t, false, false))
	require.NoError(t, err)
	assert.True(t, res.URI.WeakEqual(confURI))

	require.Len(t, sent, 2)
	invite := sent[0]
	assert.Equal(t, sip.INVITE, invite.Method)
	assert.Equal(t, "conference-factory", invite.Recipient.User)
	assert.Equal(t, conference.ContentType, invite.ContentType().Value())
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", string(invite.Body()))
	assert.Equal(t, "alice", invite.From().Address.User)
	assert.Equal(t, sip.BYE, sent[1].Method)

	tx.AssertCalled(t, "WriteRequest", mock.MatchedBy(func(req *sip.Request) bool {
		return req.Method == sip.ACK
	}))
}

// serverResponse 200 OK так, как его собирает сервер: To с тегом,
// Contact конференции и Record-Route прокси по пути.
func serverResponse() *sip.Response {
	res := response(200, "OK", confURI)
	res.AppendHeader(&sip.ToHeader{Address: factory.URI, Params: sip.HeaderParams{"tag": "srv-tag"}})
	res.AppendHeader(sip.NewHeader("Record-Route", "<sip:edge.example.com;lr>"))
	res.AppendHeader(sip.NewHeader("Record-Route", "<sip:core.example.com;lr>"))
	return res
}

func TestAllocatorAcksAndHangsUp(t *testing.T) {
	tx := &mockTransactor{}
	var invite, bye *sip.Request
	tx.On("Do", mock.Anything, mock.MatchedBy(func(req *sip.Request) bool { return req.Method == sip.INVITE })).
		Run(func(args mock.Arguments) { invite = args.Get(1).(*sip.Request) }).
		Return(serverResponse(), nil).Once()
	tx.On("Do", mock.Anything, mock.MatchedBy(func(req *sip.Request) bool { return req.Method == sip.BYE })).
		Run(func(args mock.Arguments) { bye = args.Get(1).(*sip.Request) }).
		Return(response(200, "OK", nil), nil).Once()
	var ack *sip.Request
	tx.On("WriteRequest", mock.Anything).
		Run(func(args mock.Arguments) { ack = args.Get(0).(*sip.Request) }).
		Return(nil).Once()

	_, err := NewAllocator(tx).Allocate(context.Background(), allocationRequest(t, false, false))
	require.NoError(t, err)
	tx.AssertExpectations(t)
	require.NotNil(t, invite)
	require.NotNil(t, ack)
	require.NotNil(t, bye)

	assert.Equal(t, sip.ACK, ack.Method)
	assert.Equal(t, invite.Recipient.String(), ack.Recipient.String())
	assert.Equal(t, invite.CallID().Value(), ack.CallID().Value())
	assert.Equal(t, invite.CSeq().SeqNo, ack.CSeq().SeqNo)
	assert.Equal(t, sip.ACK, ack.CSeq().MethodName)
	fromTag, _ := invite.From().Params.Get("tag")
	ackFromTag, _ := ack.From().Params.Get("tag")
	assert.Equal(t, fromTag, ackFromTag)
	toTag, _ := ack.To().Params.Get("tag")
	assert.Equal(t, "srv-tag", toTag)

	routes := ack.GetHeaders("Route")
	require.Len(t, routes, 2)
	assert.Equal(t, "<sip:core.example.com;lr>", routes[0].Value())
	assert.Equal(t, "<sip:edge.example.com;lr>", routes[1].Value())

	assert.Equal(t, sip.BYE, bye.Method)
	assert.Equal(t, "conf-7f3a", bye.Recipient.User)
	assert.Equal(t, invite.CallID().Value(), bye.CallID().Value())
	assert.Equal(t, invite.CSeq().SeqNo+1, bye.CSeq().SeqNo)
	assert.Equal(t, sip.BYE, bye.CSeq().MethodName)
	byeToTag, _ := bye.To().Params.Get("tag")
	assert.Equal(t, "srv-tag", byeToTag)
	assert.Len(t, bye.GetHeaders("Route"), 2)
}

func TestAllocatorByeFailureIsNotFatal(t *testing.T) {
	tx := &mockTransactor{}
	tx.On("Do", mock.Anything, mock.MatchedBy(func(req *sip.Request) bool { return req.Method == sip.INVITE })).
		Return(response(200, "OK", confURI), nil).Once()
	tx.On("Do", mock.Anything, mock.MatchedBy(func(req *sip.Request) bool { return req.Method == sip.BYE })).
		Return(nil, errors.New("timeout")).Once()
	tx.On("WriteRequest", mock.Anything).Return(nil)

	res, err := NewAllocator(tx).Allocate(context.Background(), allocationRequest(t, false, false))
	require.NoError(t, err)
	assert.True(t, res.URI.WeakEqual(confURI))
	tx.AssertExpectations(t)
}

func TestAllocatorRejectedInviteHasNoDialog(t *testing.T) {
	tx := &mockTransactor{}
	tx.On("Do", mock.Anything, mock.Anything).Return(response(403, "Forbidden", nil), nil).Once()

	_, err := NewAllocator(tx).Allocate(context.Background(), allocationRequest(t, true, false))
	require.Error(t, err)
	tx.AssertNumberOfCalls(t, "Do", 1)
	tx.AssertNotCalled(t, "WriteRequest", mock.Anything)
}

func TestAllocatorEditsExistingConference(t *testing.T) {
	tx := &mockTransactor{}
	tx.On("Do", mock.Anything, mock.MatchedBy(func(req *sip.Request) bool {
		return req.Recipient.User == "conf-7f3a"
	})).Return(response(200, "OK", confURI), nil)
	tx.On("WriteRequest", mock.Anything).Return(nil)

	res, err := NewAllocator(tx).Allocate(context.Background(), allocationRequest(t, true, false))
	require.NoError(t, err)
	assert.True(t, res.URI.WeakEqual(confURI))
	tx.AssertExpectations(t)
}

func TestAllocatorStatusMapping(t *testing.T) {
	transportErr := errors.New("dial udp: connection refused")

	tests := []struct {
		name     string
		cancel   bool
		res      *sip.Response
		err      error
		wantKind scheduler.AllocationFailure
		wantCode int
		wantURI  bool
	}{
		{name: "488 уровень защиты", res: response(488, "Not Acceptable Here", nil), wantKind: scheduler.FailureSecurityLevelUnsupported, wantCode: 488},
		{name: "606 уровень защиты", res: response(606, "Not Acceptable", nil), wantKind: scheduler.FailureSecurityLevelUnsupported, wantCode: 606},
		{name: "403 отказ", res: response(403, "Forbidden", nil), wantKind: scheduler.FailureRejected, wantCode: 403},
		{name: "302 тоже отказ", res: response(302, "Moved Temporarily", nil), wantKind: scheduler.FailureRejected, wantCode: 302},
		{name: "ошибка транспорта", err: transportErr, wantKind: scheduler.FailureNetwork},
		{name: "2xx без Contact", res: response(200, "OK", nil), wantKind: scheduler.FailureMalformedResponse, wantCode: 200},
		{name: "отмена без Contact", cancel: true, res: response(200, "OK", nil), wantURI: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &mockTransactor{}
			tx.On("Do", mock.Anything, mock.Anything).Return(tt.res, tt.err)
			tx.On("WriteRequest", mock.Anything).Return(nil)

			res, err := NewAllocator(tx).Allocate(context.Background(), allocationRequest(t, true, tt.cancel))
			if tt.wantURI {
				require.NoError(t, err)
				assert.True(t, res.URI.WeakEqual(confURI))
				return
			}

			var allocErr *scheduler.AllocationError
			require.ErrorAs(t, err, &allocErr)
			assert.Equal(t, tt.wantKind, allocErr.Kind)
			assert.Equal(t, tt.wantCode, allocErr.StatusCode)
			assert.Equal(t, tt.wantKind == scheduler.FailureNetwork, allocErr.Retryable())
			if tt.err != nil {
				assert.ErrorIs(t, err, transportErr)
			}
		})
	}
}

func TestAllocatorWithoutTarget(t *testing.T) {
	tx := &mockTransactor{}
	req := allocationRequest(t, false, false)
	req.Account.ConferenceFactory = nil

	_, err := NewAllocator(tx).Allocate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoTarget)
	tx.AssertNotCalled(t, "Do", mock.Anything, mock.Anything)
}

func TestAllocatorAckFailureIsNotFatal(t *testing.T) {
	tx := &mockTransactor{}
	tx.On("Do", mock.Anything, mock.Anything).Return(response(200, "OK", confURI), nil)
	tx.On("WriteRequest", mock.Anything).Return(errors.New("socket closed"))

	res, err := NewAllocator(tx).Allocate(context.Background(), allocationRequest(t, false, false))
	require.NoError(t, err)
	assert.True(t, res.URI.WeakEqual(confURI))
}
