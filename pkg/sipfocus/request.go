package sipfocus

import (
	"context"
	"net"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"

	"github.com/arzzra/soft_conference/pkg/address"
)

// Transactor выполняет клиентскую транзакцию. Do возвращает финальный
// ответ, WriteRequest отправляет запрос вне транзакции (ACK на 2xx).
type Transactor interface {
	Do(ctx context.Context, req *sip.Request) (*sip.Response, error)
	WriteRequest(req *sip.Request) error
}

// contactProvider отдает Contact, по которому клиент доступен на своем
// транспорте. Client реализует его, заглушки в тестах могут не реализовывать.
type contactProvider interface {
	Contact(user string) (sip.Uri, bool)
}

// contactFor адрес транспорта, если он известен, иначе URI отправителя
func contactFor(tx Transactor, from *address.Address) sip.Uri {
	if cp, ok := tx.(contactProvider); ok {
		if uri, ok := cp.Contact(from.URI.User); ok {
			return uri
		}
	}
	return from.URI
}

// contactURI собирает Contact из конфигурации транспорта. Адрес без
// конкретного хоста (0.0.0.0, ::) в Contact не годится.
func contactURI(tc TransportConfig, host, user string) (sip.Uri, bool) {
	if host == "" {
		host = tc.Host
	}
	if ip := net.ParseIP(host); host == "" || ip != nil && ip.IsUnspecified() {
		return sip.Uri{}, false
	}
	uri := sip.Uri{
		Scheme:    tc.Scheme(),
		User:      user,
		Host:      host,
		Port:      tc.Port,
		UriParams: sip.HeaderParams{},
	}
	if param := tc.TransportParam(); param != "udp" {
		uri.UriParams["transport"] = param
	}
	return uri, true
}

// newRequest собирает запрос вне диалога. Via добавляет транспортный уровень.
func newRequest(method sip.RequestMethod, from, to *address.Address, contact sip.Uri, contentType string, body []byte) *sip.Request {
	req := sip.NewRequest(method, to.URI)

	callID := sip.CallIDHeader(uuid.NewString())
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.FromHeader{
		DisplayName: from.DisplayName,
		Address:     from.URI,
		Params:      sip.HeaderParams{"tag": sip.RandString(8)},
	})
	req.AppendHeader(&sip.ToHeader{
		DisplayName: to.DisplayName,
		Address:     to.URI,
		Params:      sip.HeaderParams{},
	})
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: method})
	req.AppendHeader(&sip.ContactHeader{Address: contact})
	maxForwards := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxForwards)

	if len(body) > 0 {
		ct := sip.ContentTypeHeader(contentType)
		req.AppendHeader(&ct)
		req.SetBody(body)
	}
	return req
}

func isSuccess(res *sip.Response) bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}
