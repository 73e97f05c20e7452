package scheduler

import (
	"github.com/arzzra/soft_conference/pkg/address"
)

var (
	alice   = address.MustParse("sip:alice@example.com")
	bob     = address.MustParse("sip:bob@example.com")
	carol   = address.MustParse("sip:carol@example.com")
	dave    = address.MustParse("sip:dave@example.com")
	factory = address.MustParse("sip:conference-factory@example.com")
	confURI = address.MustParse("sip:conf-7f3a@example.com")

	testAccount = Account{Identity: alice, ConferenceFactory: factory}
)
