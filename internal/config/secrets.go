package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// secretsDir путь Docker Secrets. Переменная, чтобы тесты могли подменить каталог.
var secretsDir = "/run/secrets"

// ReadSecret читает секрет из файла Docker Secrets. Если файла нет,
// используется переменная окружения fallbackEnv (для локального запуска).
func ReadSecret(secretName, fallbackEnv string) (string, error) {
	filePath := filepath.Join(secretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", filePath)
		}
		return secret, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}

	if fallbackEnv != "" {
		if v := strings.TrimSpace(os.Getenv(fallbackEnv)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("secret %s not found in %s and %s is not set", secretName, secretsDir, fallbackEnv)
}
