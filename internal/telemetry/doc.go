// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
//
// Секреты подписок в атрибуты логов не передаются ни при каких
// обстоятельствах — только идентификаторы.
package telemetry
