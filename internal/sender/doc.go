// Package sender выполняет единичные попытки доставки webhook.
//
// Sender — исполнитель ровно одной сетевой попытки: подписывает тело,
// выполняет POST с жёстким таймаутом и возвращает структурированный
// Result. Он ничего не знает о счётчиках попыток, персистентности и
// списках подписчиков — retry и fan-out живут в scheduler и dispatcher.
//
// Sender никогда не возвращает error: любой исход (таймаут, сетевая
// ошибка, не-2xx ответ) выражается полями Result.
package sender
