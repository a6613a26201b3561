package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Role — роль владельца сессии.
type Role string

const (
	// RoleCustomer — покупатель, видит и отменяет только свои заказы.
	RoleCustomer Role = "customer"
	// RoleOperator — сотрудник магазина, двигает заказы по статусам.
	RoleOperator Role = "operator"
)

// Customer — аутентифицированный клиент и его профиль скидки (0–100%).
type Customer struct {
	ID                 string
	Email              string
	Name               string
	DiscountPercentage decimal.Decimal
	Role               Role
}

// IsOperator сообщает, что сессия принадлежит оператору магазина.
func (c Customer) IsOperator() bool {
	return c.Role == RoleOperator
}

// Address — адрес доставки.
type Address struct {
	FullName   string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
	Phone      string
}

// IsZero сообщает, что адрес не заполнен.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Validate проверяет обязательные поля адреса.
func (a Address) Validate() error {
	if a.IsZero() {
		return ErrShippingAddressRequired
	}
	var errs []error
	if strings.TrimSpace(a.FullName) == "" {
		errs = append(errs, errors.New("full name is required"))
	}
	if strings.TrimSpace(a.Line1) == "" {
		errs = append(errs, errors.New("address line is required"))
	}
	if strings.TrimSpace(a.City) == "" {
		errs = append(errs, errors.New("city is required"))
	}
	if strings.TrimSpace(a.Country) == "" {
		errs = append(errs, errors.New("country is required"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrShippingAddressRequired}, errs...)...)
	}
	return nil
}
