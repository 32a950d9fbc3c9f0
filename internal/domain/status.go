package domain

// DeliveryStatus — статус доставки.
//
// Жизненный цикл:
//
//	pending → success
//	        ↘ failed → (retry) → success
//	                 ↘ (исчерпаны попытки / подписка отключена) → failed, терминально
//
// pending — переходное состояние между созданием записи и исходом
// первой попытки. Терминальность failed определяется полем NextRetryAt:
// nil означает, что retry больше не будет.
type DeliveryStatus string

const (
	// DeliveryStatusPending — запись создана, первая попытка ещё не завершена.
	DeliveryStatusPending DeliveryStatus = "pending"

	// DeliveryStatusSuccess — доставка подтверждена (HTTP 2xx).
	DeliveryStatusSuccess DeliveryStatus = "success"

	// DeliveryStatusFailed — последняя попытка не удалась.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// IsTerminal возвращает true для состояний, из которых нет переходов
// силами самого движка (success всегда терминален; failed — только
// когда retry исчерпаны, это определяется по NextRetryAt на Delivery).
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSuccess
}
