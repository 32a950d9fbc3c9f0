package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SchemeV1 — префикс текущей версии подписи.
const SchemeV1 = "v1"

// DefaultTolerance — допустимое расхождение timestamp подписи с текущим
// временем. Подпись старше (или "новее") этого окна отклоняется.
const DefaultTolerance = 300 * time.Second

// Sign вычисляет HMAC-SHA256 подпись для payload.
//
// Строка подписи — "{timestamp}.{payload}". Результат — "v1={hex}".
// Функция детерминирована: одинаковые входы дают одинаковую подпись.
func Sign(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return SchemeV1 + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись payload.
//
// Возвращает false при устаревшем timestamp, некорректном формате
// подписи или несовпадении HMAC. Никогда не паникует и не возвращает
// ошибок: некорректный вход — это просто невалидная подпись.
func Verify(payload []byte, sig, secret string, timestamp int64, tolerance time.Duration) bool {
	ok, _ := Check(payload, sig, secret, timestamp, tolerance)
	return ok
}

// Check — Verify с пояснением причины отказа.
//
// Порядок проверок важен: staleness проверяется ДО криптографического
// сравнения — перехваченная старая подпись должна отклоняться по
// возрасту независимо от знания секрета.
func Check(payload []byte, sig, secret string, timestamp int64, tolerance time.Duration) (bool, string) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	age := time.Since(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return false, "timestamp outside tolerance"
	}

	scheme, hexMAC, found := strings.Cut(sig, "=")
	if !found || scheme != SchemeV1 {
		return false, "malformed signature"
	}

	provided, err := hex.DecodeString(hexMAC)
	if err != nil {
		return false, "malformed signature"
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	// hmac.Equal — сравнение за константное время, чтобы не утекать
	// байты секрета через timing side-channel.
	if !hmac.Equal(provided, expected) {
		return false, "signature mismatch"
	}

	return true, ""
}
