package sipfocus

import (
	"maps"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/soft_conference/pkg/address"
)

// dialog состояние UAC диалога, установленного ответом 2xx на INVITE.
// Нужен только для ACK и BYE.
type dialog struct {
	invite   *sip.Request
	callID   string
	from     sip.FromHeader
	to       sip.ToHeader
	seq      uint32
	target   sip.Uri
	routeSet []sip.Uri
}

func newDialog(invite *sip.Request, res *sip.Response) *dialog {
	d := &dialog{
		invite: invite,
		target: invite.Recipient,
	}
	if h := invite.CallID(); h != nil {
		d.callID = h.Value()
	}
	if h := invite.From(); h != nil {
		d.from = sip.FromHeader{DisplayName: h.DisplayName, Address: h.Address, Params: maps.Clone(h.Params)}
	}
	// To из ответа, с тегом сервера
	if h := res.To(); h != nil {
		d.to = sip.ToHeader{DisplayName: h.DisplayName, Address: h.Address, Params: maps.Clone(h.Params)}
	} else if h := invite.To(); h != nil {
		d.to = sip.ToHeader{DisplayName: h.DisplayName, Address: h.Address, Params: maps.Clone(h.Params)}
	}
	if h := invite.CSeq(); h != nil {
		d.seq = h.SeqNo
	}
	if contact := res.Contact(); contact != nil && contact.Address.Host != "" {
		d.target = contact.Address
	}

	// UAC берет Record-Route в обратном порядке
	recordRoutes := res.GetHeaders("Record-Route")
	for i := len(recordRoutes) - 1; i >= 0; i-- {
		addr, err := address.Parse(recordRoutes[i].Value())
		if err != nil {
			continue
		}
		d.routeSet = append(d.routeSet, addr.URI)
	}
	return d
}

// ack ACK на 2xx: Request-URI и CSeq как у INVITE
func (d *dialog) ack() *sip.Request {
	return d.request(sip.ACK, d.invite.Recipient, d.seq)
}

// bye идет на удаленный target со следующим CSeq
func (d *dialog) bye() *sip.Request {
	return d.request(sip.BYE, d.target, d.seq+1)
}

func (d *dialog) request(method sip.RequestMethod, uri sip.Uri, seq uint32) *sip.Request {
	req := sip.NewRequest(method, uri)

	callID := sip.CallIDHeader(d.callID)
	req.AppendHeader(&callID)
	from := d.from
	from.Params = maps.Clone(d.from.Params)
	req.AppendHeader(&from)
	to := d.to
	to.Params = maps.Clone(d.to.Params)
	req.AppendHeader(&to)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: seq, MethodName: method})
	maxForwards := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxForwards)

	for _, route := range d.routeSet {
		req.AppendHeader(&sip.RouteHeader{Address: route})
	}
	return req
}
