package order

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxSequence = 9999

// IDGenerator выдаёт человекочитаемые идентификаторы заказов вида
// ORD-20260301-101500-0001-7F3A9C. Номер внутри секунды растёт монотонно;
// если часы стоят или идут назад, генератор продолжает считать от последней
// выданной секунды и не повторяет номер.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
	seq  int
}

// NewIDGenerator создаёт генератор. now == nil означает системные часы.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next возвращает следующий идентификатор.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	sec := g.now().UTC().Unix()
	if sec > g.last {
		g.last = sec
		g.seq = 1
	} else {
		g.seq++
		if g.seq > maxSequence {
			g.last++
			g.seq = 1
		}
	}
	stamp := time.Unix(g.last, 0).UTC()
	seq := g.seq
	g.mu.Unlock()

	return fmt.Sprintf("ORD-%s-%04d-%s", stamp.Format("20060102-150405"), seq, randomSuffix())
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", id[:3]))
}
