package conference

import "github.com/google/uuid"

// ContentType тип содержимого сообщения с описанием конференции
const ContentType = "text/calendar"

// Значения METHOD календаря
const (
	MethodRequest = "REQUEST"
	MethodCancel  = "CANCEL"
)

const (
	propConfURI = "X-CONFURI"
	productID   = "-//arzzra//soft_conference//EN"
	uidPrefix   = "urn:uuid:"
)

// ICSAvailable сообщает, собрана ли поддержка iCalendar. Без нее ToICS
// возвращает пустую строку и приглашения отправить нельзя.
func ICSAvailable() bool {
	return icsEnabled
}

// ToICS сериализует описание в iCalendar. Пустая строка означает, что
// ICS недоступен или описание не удалось закодировать, а не пустой документ.
//
// cancel принудительно выставляет METHOD:CANCEL. sequence >= 0 заменяет
// номер версии в документе, отрицательное значение означает IcsSequence.
// Если UID или номер версии еще не заданы, описание принимает значения,
// использованные при кодировании.
func (i *Info) ToICS(cancel bool, sequence int) string {
	out, err := i.MarshalICS(cancel, sequence)
	if err != nil {
		logICSError(i, err)
		return ""
	}
	return out
}

// NewUID выдает новый глобальный идентификатор документа
func NewUID() string {
	return uidPrefix + uuid.NewString()
}
