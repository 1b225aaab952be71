package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация торговых данных
//
// Назначение:
// Проверка корректности входных данных до того, как они попадут
// в риск-менеджмент или уйдут брокеру.
//
// Возвращает error с описанием проблемы или nil

// symbolPattern - формат символов синтетических индексов брокера:
// R_10, R_75, 1HZ100V, BOOM1000, CRASH500 и т.п.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+(_[A-Z0-9]+)*$`)

// ValidateSymbol проверяет формат торгового символа
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if len(symbol) > 30 {
		return fmt.Errorf("symbol too long: %d characters", len(symbol))
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %q", symbol)
	}
	return nil
}

// ValidateStake проверяет ставку сделки
func ValidateStake(stake float64) error {
	if stake <= 0 {
		return fmt.Errorf("stake must be positive, got %.2f", stake)
	}
	if stake > 50000 {
		return fmt.Errorf("stake %.2f exceeds broker maximum", stake)
	}
	return nil
}

// ValidateMultiplier проверяет мультипликатор контракта
func ValidateMultiplier(multiplier int) error {
	if multiplier <= 0 {
		return fmt.Errorf("multiplier must be positive, got %d", multiplier)
	}
	return nil
}

// ValidateDirection проверяет направление сделки (UP/DOWN)
func ValidateDirection(direction string) error {
	switch strings.ToUpper(direction) {
	case "UP", "DOWN":
		return nil
	default:
		return fmt.Errorf("invalid direction: %q (expected UP or DOWN)", direction)
	}
}

// ValidateAPIToken выполняет базовую проверку токена брокера
func ValidateAPIToken(token string) error {
	if token == "" {
		return fmt.Errorf("API token is empty")
	}
	if len(token) < 8 {
		return fmt.Errorf("API token too short")
	}
	if strings.ContainsAny(token, " \t\n") {
		return fmt.Errorf("API token contains whitespace")
	}
	return nil
}
