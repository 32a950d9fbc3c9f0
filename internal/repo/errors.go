package repo

import "errors"

// ErrNotFound — запись отсутствует в БД. Репозитории возвращают его
// и для GetByID по несуществующему ID, и для Update/Delete, не
// затронувших ни одной строки.
var ErrNotFound = errors.New("not found")
