package signature

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// secretBytes — длина случайной части секрета в байтах.
	secretBytes = 32

	// SecretPrefix — префикс подписных секретов, по нему секрет
	// опознаётся в конфигурации подписчика.
	SecretPrefix = "whsec_"
)

// GenerateSecret создаёт новый подписной секрет: SecretPrefix + 32
// случайных байта в hex.
func GenerateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return SecretPrefix + hex.EncodeToString(b), nil
}

// MaskSecret возвращает безопасное для отображения представление секрета.
// Полный секрет показывается ровно один раз — при создании или ротации.
func MaskSecret(secret string) string {
	if len(secret) <= 12 {
		return "****"
	}
	return secret[:10] + "..." + secret[len(secret)-4:]
}
