// Package scheduler реализует Retry Scheduler — периодический sweep по
// неудачным доставкам.
//
// Каждый тик:
//   - Забирает (claim) порцию failed-доставок с подошедшим next_retry_at
//   - Пропускает доставки отключённых или удалённых подписок
//   - Повторяет HTTP-попытку с сохранённым payload (байт-в-байт)
//   - Фиксирует исход: success, следующий retry по backoff или
//     окончательный отказ после исчерпания попыток
//
// Claim выполняется через FOR UPDATE SKIP LOCKED со сдвигом
// next_retry_at вперёд, поэтому перекрывающиеся тики и несколько
// экземпляров retrier'а не обрабатывают одну запись дважды.
//
// Расписание тиков задаётся снаружи (cron в cmd/courier-retrier).
package scheduler
