package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/marcelojr/votos-addon/internal/domain"
	"github.com/marcelojr/votos-addon/internal/platform/metrics"
)

// VotoModel é a linha da tabela votos; o índice único em ip garante um voto por identidade entre instâncias.
type VotoModel struct {
	ID          int    `gorm:"column:id;primaryKey;autoIncrement:false"`
	Voto        string `gorm:"column:voto;type:varchar(8);not null"`
	Fecha       string `gorm:"column:fecha;type:text;not null"`
	TimestampMs int64  `gorm:"column:timestamp_ms;not null"`
	Navegador   string `gorm:"column:navegador;type:text;not null"`
	Sistema     string `gorm:"column:sistema_operativo;type:text;not null"`
	IP          string `gorm:"column:ip;type:text;not null;uniqueIndex:idx_votos_ip"`
	Pais        string `gorm:"column:pais;type:text;not null"`
	Ciudad      string `gorm:"column:ciudad;type:text;not null"`
}

func (VotoModel) TableName() string {
	return "votos"
}

func fromRegistro(r domain.RegistroVoto) VotoModel {
	return VotoModel{
		ID:          r.ID,
		Voto:        string(r.Voto),
		Fecha:       r.Fecha,
		TimestampMs: r.Timestamp,
		Navegador:   r.Navegador,
		Sistema:     r.Sistema,
		IP:          r.IP,
		Pais:        r.Pais,
		Ciudad:      r.Ciudad,
	}
}

func (m VotoModel) toRegistro() domain.RegistroVoto {
	return domain.RegistroVoto{
		ID:        m.ID,
		Voto:      domain.Escolha(m.Voto),
		Fecha:     m.Fecha,
		Timestamp: m.TimestampMs,
		Navegador: m.Navegador,
		Sistema:   m.Sistema,
		IP:        m.IP,
		Pais:      m.Pais,
		Ciudad:    m.Ciudad,
	}
}

// VotoStore deriva a apuração das linhas gravadas; não existe contador separado para divergir.
type VotoStore struct {
	db    *gorm.DB
	addon string
	clock domain.Clock
	loc   *time.Location

	// mu serializa escritas desta instância; entre instâncias vale o índice único.
	mu sync.Mutex
}

func NewVotoStore(db *gorm.DB, addon string, clock domain.Clock, loc *time.Location) *VotoStore {
	return &VotoStore{db: db, addon: addon, clock: clock, loc: loc}
}

func (s *VotoStore) Carregar(ctx context.Context) (domain.Conjunto, error) {
	var models []VotoModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return domain.Conjunto{}, indisponivel("listar", err)
	}

	conjunto := domain.NovoConjunto(s.addon)
	conjunto.Detalles = make([]domain.RegistroVoto, 0, len(models))
	for _, m := range models {
		r := m.toRegistro()
		conjunto.Detalles = append(conjunto.Detalles, r)
		conjunto.Votos.Incrementar(r.Voto)
	}
	conjunto.TotalVotos = len(conjunto.Detalles)
	return conjunto, nil
}

func (s *VotoStore) JaVotou(ctx context.Context, identidade string) (bool, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&VotoModel{}).
		Where("ip = ?", identidade).
		Count(&total).Error; err != nil {
		return false, indisponivel("verificar ip", err)
	}
	return total > 0, nil
}

func (s *VotoStore) RegistrarVoto(ctx context.Context, escolha domain.Escolha, meta domain.Metadados) (domain.Apuracao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inicio := time.Now()
	var apuracao domain.Apuracao
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ultimo int64
		if err := tx.Model(&VotoModel{}).Select("COALESCE(MAX(id), 0)").Scan(&ultimo).Error; err != nil {
			return indisponivel("ultimo id", err)
		}

		registro := domain.NovoRegistro(int(ultimo)+1, escolha, meta, s.clock.Agora(), s.loc)

		var existentes int64
		if err := tx.Model(&VotoModel{}).Where("ip = ?", registro.IP).Count(&existentes).Error; err != nil {
			return indisponivel("verificar ip", err)
		}
		if existentes > 0 {
			return domain.ErrVotoDuplicado
		}

		if err := tx.SavePoint(savepointInserir).Error; err != nil {
			return indisponivel("savepoint", err)
		}
		model := fromRegistro(registro)
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return s.conflito(tx, registro.IP, err)
			}
			return indisponivel("inserir", err)
		}

		var err error
		apuracao, err = contar(tx)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrVotoDuplicado) || errors.Is(err, domain.ErrArmazenamentoIndisponivel) {
			return domain.Apuracao{}, err
		}
		return domain.Apuracao{}, indisponivel("transacao", err)
	}

	metrics.ObserveStoreWrite(time.Since(inicio).Seconds())
	return apuracao, nil
}

const savepointInserir = "antes_inserir_voto"

// conflito separa violação do índice de ip de colisão de id com outra instância;
// só a primeira é voto repetido, a segunda pode ser tentada de novo.
func (s *VotoStore) conflito(tx *gorm.DB, ip string, causa error) error {
	if err := tx.RollbackTo(savepointInserir).Error; err != nil {
		return indisponivel("rollback savepoint", err)
	}
	var existentes int64
	if err := tx.Model(&VotoModel{}).Where("ip = ?", ip).Count(&existentes).Error; err != nil {
		return indisponivel("verificar ip", err)
	}
	if existentes > 0 {
		return domain.ErrVotoDuplicado
	}
	return indisponivel("inserir", causa)
}

func contar(tx *gorm.DB) (domain.Apuracao, error) {
	type resultado struct {
		Voto  string
		Total int
	}
	var res []resultado
	if err := tx.Model(&VotoModel{}).
		Select("voto AS voto, COUNT(*) AS total").
		Group("voto").
		Scan(&res).Error; err != nil {
		return domain.Apuracao{}, indisponivel("apurar", err)
	}

	var apuracao domain.Apuracao
	for _, item := range res {
		switch domain.Escolha(item.Voto) {
		case domain.EscolhaSi:
			apuracao.Si = item.Total
		case domain.EscolhaNo:
			apuracao.No = item.Total
		case domain.EscolhaQuiza:
			apuracao.Quiza = item.Total
		}
	}
	apuracao.Total = apuracao.Soma()
	return apuracao, nil
}

func indisponivel(op string, err error) error {
	return fmt.Errorf("%w: gorm votos: %s: %w", domain.ErrArmazenamentoIndisponivel, op, err)
}

var _ domain.VoteStore = (*VotoStore)(nil)
