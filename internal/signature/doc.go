// Package signature реализует подпись и проверку webhook-доставок.
//
// Структура:
//   - signer.go — HMAC-SHA256 подпись формата "v1={hex}" и её проверка
//     с защитой от replay по timestamp
//   - secret.go — генерация и маскирование подписных секретов
//
// Строка подписи: "{unix_timestamp}.{raw json body}". Подписчик,
// зная свой секрет, воспроизводит подпись по телу запроса и заголовку
// X-Webhook-Timestamp и сравнивает с X-Webhook-Signature.
//
// Секрет подписки никогда не попадает в логи, сообщения об ошибках
// и записи Delivery.
package signature
