package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork — транзиентная сетевая ошибка: таймаут, DNS, не-2xx ответ.
	ErrNetwork = errors.New("network error")
	// ErrInvalidArgument возвращается при неположительных page/pageSize и т.п.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound — запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrStale — ответ устарел: после запроса был выпущен более новый.
	ErrStale = errors.New("stale response")
	// ErrNoPushToken — у получателя нет токена для канала доставки.
	ErrNoPushToken = errors.New("recipient has no push token")
)

// NetworkError описывает неудачный запрос к внешнему сервису.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": network error"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is позволяет проверять errors.Is(err, ErrNetwork).
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }
