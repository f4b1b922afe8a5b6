package domain

import (
	"strconv"
	"time"
)

// discordEpochMs es el epoch de los snowflakes de Discord (2015-01-01).
const discordEpochMs = 1420070400000

// riskWindowSeconds: cuentas creadas a menos de 2 días del ingreso son sospechosas.
const riskWindowSeconds = 172800

// SnowflakeTime extrae la fecha de creación codificada en un ID de plataforma.
func SnowflakeTime(id string) (time.Time, bool) {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	ms := int64(v>>22) + discordEpochMs
	return time.UnixMilli(ms).UTC(), true
}

// RiskScore estima (0..100) la probabilidad de que la cuenta sea descartable,
// según el tiempo entre la creación de la cuenta y el ingreso a la comunidad.
func RiskScore(userID string, joinedAt time.Time) int {
	created, ok := SnowflakeTime(userID)
	if !ok || joinedAt.IsZero() {
		return 0
	}
	gap := joinedAt.Unix() - created.Unix()
	chance := 1.0 - float64(gap+1)/riskWindowSeconds
	switch {
	case chance < 0:
		return 0
	case chance > 1:
		return 100
	}
	return int(chance * 100)
}
