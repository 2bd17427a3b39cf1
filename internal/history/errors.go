package history

import "errors"

// ErrNotFound — запуск не найден.
var ErrNotFound = errors.New("run not found")
