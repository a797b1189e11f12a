package domain

import (
	"errors"
	"fmt"
)

// Классы ошибок ядра. HTTP-слой маппит их на статус-коды,
// конкретные ошибки ниже оборачивают свой класс через %w.
var (
	// ErrValidation — некорректный или неполный ввод; изменений состояния нет.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized — доступ к чужому заказу без админских прав.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPaymentGateway — внешний платёжный шлюз вернул ошибку; заказ сохранён.
	ErrPaymentGateway = errors.New("payment gateway error")
	// ErrInvalidSignature — подпись webhook-а не прошла проверку; изменений нет.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = fmt.Errorf("%w: userId is required", ErrValidation)
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = fmt.Errorf("%w: item quantity must be greater than zero", ErrValidation)
	// Ошибка при некорректной цене позиции (<= 0).
	ErrItemPriceInvalid = fmt.Errorf("%w: item price must be greater than zero", ErrValidation)
	// Ошибка отсутствующего адреса доставки.
	ErrAddressRequired = fmt.Errorf("%w: shipping address is required", ErrValidation)
	// Ошибка отсутствующего session id при подтверждении оплаты.
	ErrSessionIDRequired = fmt.Errorf("%w: session id is required", ErrValidation)
	// Ошибки shipping info при переводе заказа в shipped.
	ErrShippingInfoRequired = fmt.Errorf("%w: shipping information is required for shipped status", ErrValidation)
	ErrCourierRequired      = fmt.Errorf("%w: courier company name is required", ErrValidation)
	ErrTrackingRequired     = fmt.Errorf("%w: tracking number is required", ErrValidation)
	// ErrInvalidStatus — статус вне перечисления OrderStatus.
	ErrInvalidStatus = fmt.Errorf("%w: invalid order status", ErrValidation)

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists сигнализирует о конфликте идентификаторов при создании.
	ErrOrderExists = errors.New("order already exists")
	// ErrUserNotFound возвращается, если учётная запись не найдена.
	ErrUserNotFound = errors.New("user not found")
)

// IsValidation проверяет, относится ли ошибка к классу валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound проверяет, является ли ошибка отсутствием заказа или пользователя.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrUserNotFound)
}
