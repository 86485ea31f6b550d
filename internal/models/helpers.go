package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// orderNumberPrefix is the short human-facing prefix on every order number
const orderNumberPrefix = "SB"

// NewOrderNumber generates a human-facing order number: prefix, millisecond
// timestamp in base36, and a random suffix. Unique with overwhelming
// probability, so placement never needs a uniqueness round trip.
func NewOrderNumber() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:5]

	return strings.ToUpper(orderNumberPrefix + ts + suffix)
}

// GetCurrentTime returns the current time in UTC
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}
