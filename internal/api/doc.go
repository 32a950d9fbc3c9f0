// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go              — Handler с DI (репозитории, publisher, dispatcher, logger)
//   - routes.go               — регистрация маршрутов
//   - middleware.go           — middleware (logging, recovery)
//   - response.go             — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                  — Data Transfer Objects (request/response)
//   - subscription_handler.go — обработчики для /subscriptions
//   - delivery_handler.go     — обработчики для /deliveries
//   - event_handler.go        — приём доменных событий (/events)
//
// API предоставляет REST endpoints для управления подписками, просмотра
// журнала доставок и приёма событий. Секрет подписки возвращается ровно
// один раз — при создании или ротации.
package api
