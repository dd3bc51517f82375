package domain

import "errors"

var (
	ErrVotoDuplicado              = errors.New("identidade ja registrou voto")
	ErrArmazenamentoIndisponivel  = errors.New("armazenamento indisponivel")
	ErrGeolocalizacaoIndisponivel = errors.New("geolocalizacao indisponivel")
)
