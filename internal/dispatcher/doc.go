// Package dispatcher выполняет фан-аут доменного события по подпискам.
//
// Dispatcher — связующий компонент между приёмом события и доставкой:
//   - Получает события из очереди RabbitMQ (event.received)
//   - Находит активные подписки, фильтр которых включает тип события
//   - Строит один конверт события и снимает его байты
//   - Для каждой подписки создаёт pending-запись Delivery и выполняет
//     первую попытку доставки параллельно с остальными
//   - Фиксирует исход попытки в записи Delivery
//
// Retry здесь нет: неудачные попытки подхватывает Retry Scheduler
// (пакет scheduler) по полю next_retry_at.
package dispatcher
