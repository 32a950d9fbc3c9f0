// Package cli реализует инструмент командной строки Courier.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Courier API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления подписками, просмотра журнала
// доставок и публикации событий.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Courier API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	subs, err := client.ListSubscriptions(cli.ListSubscriptionsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: courier sub list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - subscription: list, create, show, update, delete, rotate, test
//   - delivery: list, show, redeliver
//   - event: publish, types
//
// Каждая группа создаётся через фабричную функцию (NewSubscriptionCmd
// и т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
