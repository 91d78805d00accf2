package util

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

const (
	MaxDays  = 365
	MaxLimit = 500
)

var ErrInvalidParam = errors.New("invalid parameter")

func ValidateSpaceID(spaceID string) bool {
	_, err := uuid.Parse(spaceID)
	return err == nil
}

// ParseDays reads the days query parameter. Empty means 0, the engine default.
func ParseDays(raw string) (int, error) {
	return parseBounded("days", raw, MaxDays)
}

// ParseLimit reads the limit query parameter. Empty means 0, the engine default.
func ParseLimit(raw string) (int, error) {
	return parseBounded("limit", raw, MaxLimit)
}

func parseBounded(name, raw string, max int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, ErrInvalidParam)
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("%s must be between 1 and %d: %w", name, max, ErrInvalidParam)
	}
	return n, nil
}
