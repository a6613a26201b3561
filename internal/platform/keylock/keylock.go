// Package keylock выдаёт RWMutex на ключ (идентификатор клиента) и освобождает его,
// когда держателей не осталось.
package keylock

import "sync"

type entry struct {
	mu   sync.RWMutex
	refs int
}

// Map хранит блокировки по ключам. Нулевое значение готово к использованию.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New создаёт пустую карту блокировок.
func New() *Map {
	return &Map{locks: make(map[string]*entry)}
}

func (m *Map) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks == nil {
		m.locks = make(map[string]*entry)
	}
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Map) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Lock берёт эксклюзивную блокировку ключа и возвращает функцию освобождения.
func (m *Map) Lock(key string) (unlock func()) {
	e := m.acquire(key)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.release(key, e)
	}
}

// RLock берёт разделяемую блокировку ключа.
func (m *Map) RLock(key string) (unlock func()) {
	e := m.acquire(key)
	e.mu.RLock()
	return func() {
		e.mu.RUnlock()
		m.release(key, e)
	}
}

// Len возвращает число активных ключей.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
