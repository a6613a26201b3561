package domain

import "errors"

var (
	// ErrNotAuthenticated — изменяющая операция вызвана без активной сессии клиента.
	ErrNotAuthenticated = errors.New("customer is not authenticated")
	// ErrProductNotFound — идентификатор товара не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrEmptyCart — попытка оформить заказ по пустой корзине.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTransition — недопустимая смена статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrForbidden — операция недоступна для роли текущей сессии.
	ErrForbidden = errors.New("operation is not permitted for this session")
	// ErrPersistence — сбой чтения или записи в хранилище.
	ErrPersistence = errors.New("persistence failure")

	// Ошибка некорректного количества товара при добавлении (< 1).
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("order amount must be non-negative")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия итоговой суммы и скидки.
	ErrAmountMismatch = errors.New("order total does not match subtotal minus discount")
	// Ошибка отсутствующего адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping address is required")
	// Ошибка отсутствующего способа оплаты.
	ErrPaymentMethodRequired = errors.New("payment method is required")
	// Ошибка неизвестного статуса заказа.
	ErrUnknownStatus = errors.New("unknown order status")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidCursor — курсор ленты заказов повреждён.
	ErrInvalidCursor = errors.New("invalid order cursor")
	// ErrOrderExists — заказ с таким идентификатором уже сохранён.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrStateNotFound — в хранилище состояния клиента нет записи по ключу.
	ErrStateNotFound = errors.New("state record not found")
	// ErrOutboxPublish — сообщение не удалось доставить за отведённые попытки.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxMessageNotFound — в outbox нет сообщения с таким id.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")

	// ErrIdempotencyKeyRequired — не передан idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — не посчитан хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже использован другим запросом.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// PersistenceError оборачивает ошибку хранилища так, чтобы errors.Is видел и ErrPersistence, и причину.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrPersistence, &opError{op: op, err: err})
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }

func (e *opError) Unwrap() error { return e.err }

// IsNotAuthenticated проверяет, что ошибка связана с отсутствием сессии.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsProductNotFound проверяет, что товар не найден в каталоге.
func IsProductNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

// IsPersistence проверяет, является ли ошибка сбоем хранилища.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
