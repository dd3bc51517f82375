package clock

import (
	"time"
	_ "time/tzdata"
)

type SystemClock struct{}

func NewSystemClock() SystemClock {
	return SystemClock{}
}

func (SystemClock) Agora() time.Time {
	return time.Now().UTC()
}

// Local resolve o fuso usado na data legível dos votos; nome inválido cai em UTC.
func Local(nome string) (*time.Location, error) {
	if nome == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(nome)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}
