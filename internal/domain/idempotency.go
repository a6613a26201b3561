package domain

import "time"

// IdempotencyStatus — стадия обработки запроса оформления с Idempotency-Key.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusDone       IdempotencyStatus = "done"
	// IdempotencyStatusFailed — ответ не 2xx. Ответ 4xx отдаётся повторно,
	// после 5xx ключ можно занять заново.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid сообщает, что статус известен.
func (s IdempotencyStatus) Valid() bool {
	return s == IdempotencyStatusProcessing || s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// IdempotencyRecord — запомненный ответ на запрос. Key уже включает идентификатор
// клиента, поэтому одинаковые ключи разных покупателей не пересекаются.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       IdempotencyStatus
	HTTPStatus   int
	ResponseBody []byte
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired сообщает, что срок хранения истёк: ключ можно занять заново,
// не дожидаясь очистки.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// Finished сообщает, что ответ сохранён и его можно отдать повторно.
func (r IdempotencyRecord) Finished() bool {
	return (r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed) && r.HTTPStatus != 0
}

// Reclaimable сообщает, что ключ можно занять заново: срок истёк или запрос
// завершился сбоем сервера, который клиент вправе повторить.
func (r IdempotencyRecord) Reclaimable(now time.Time) bool {
	if r.Expired(now) {
		return true
	}
	return r.Status == IdempotencyStatusFailed && r.HTTPStatus >= 500
}
