// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - event.received — принятое событие, подлежит фан-ауту по подпискам
//
// Exchanges:
//   - courier.events — принятые события
//   - courier.dlq    — dead letter queue
package mq
