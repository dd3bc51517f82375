package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marcelojr/votos-addon/internal/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Agora() time.Time { return c.now }

func setupDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Cada conexão :memory: é um banco novo; uma conexão só mantém o mesmo schema.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&VotoModel{}))

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func novoStore(t *testing.T) (*VotoStore, *gorm.DB) {
	db := setupDB(t)
	clock := fixedClock{now: time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)}
	return NewVotoStore(db, "Addon Teste", clock, time.UTC), db
}

func metaIP(ip string) domain.Metadados {
	return domain.Metadados{IP: ip, Navegador: "Safari", Sistema: "macOS", Pais: "Chile", Cidade: "Valparaiso"}
}

func TestVotoStore_Carregar_QuandoTabelaVazia_DeveRetornarConjuntoPadrao(t *testing.T) {
	store, _ := novoStore(t)

	conjunto, err := store.Carregar(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Addon Teste", conjunto.AddonNombre)
	assert.Equal(t, 0, conjunto.TotalVotos)
	assert.Empty(t, conjunto.Detalles)
}

func TestVotoStore_RegistrarVoto_QuandoValido_DevePersistirEApurar(t *testing.T) {
	store, _ := novoStore(t)
	ctx := context.Background()

	// Act
	apuracao, err := store.RegistrarVoto(ctx, domain.EscolhaSi, metaIP("192.168.1.1"))
	require.NoError(t, err)
	assert.Equal(t, domain.Apuracao{Total: 1, Contagem: domain.Contagem{Si: 1}}, apuracao)

	apuracao, err = store.RegistrarVoto(ctx, domain.EscolhaNo, metaIP("192.168.1.2"))
	require.NoError(t, err)
	assert.Equal(t, domain.Apuracao{Total: 2, Contagem: domain.Contagem{Si: 1, No: 1}}, apuracao)

	// Assert
	conjunto, err := store.Carregar(ctx)
	require.NoError(t, err)
	require.Len(t, conjunto.Detalles, 2)
	assert.Equal(t, 1, conjunto.Detalles[0].ID)
	assert.Equal(t, 2, conjunto.Detalles[1].ID)
	assert.Equal(t, "02-01-2025, 15:04:05", conjunto.Detalles[0].Fecha)
	assert.Equal(t, "Valparaiso", conjunto.Detalles[1].Ciudad)
	assert.Equal(t, apuracao, conjunto.Apuracao())
}

func TestVotoStore_RegistrarVoto_QuandoIPRepetido_DeveRetornarDuplicado(t *testing.T) {
	store, _ := novoStore(t)
	ctx := context.Background()

	_, err := store.RegistrarVoto(ctx, domain.EscolhaQuiza, metaIP("10.0.0.1"))
	require.NoError(t, err)

	_, err = store.RegistrarVoto(ctx, domain.EscolhaSi, metaIP("10.0.0.1"))
	assert.ErrorIs(t, err, domain.ErrVotoDuplicado)

	conjunto, err := store.Carregar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, conjunto.TotalVotos)
	assert.Equal(t, 1, conjunto.Votos.Quiza)
}

func TestVotoStore_RegistrarVoto_QuandoIndiceUnicoViolado_DeveTraduzirParaDuplicado(t *testing.T) {
	store, db := novoStore(t)
	ctx := context.Background()

	// Simula outra instância gravando a mesma identidade com id diferente.
	require.NoError(t, db.Create(&VotoModel{ID: 50, Voto: "no", IP: "10.9.9.9"}).Error)
	err := db.Create(&VotoModel{ID: 51, Voto: "si", IP: "10.9.9.9"}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "esperava erro de chave duplicada, veio %v", err)

	_, err = store.RegistrarVoto(ctx, domain.EscolhaSi, metaIP("10.9.9.9"))
	assert.ErrorIs(t, err, domain.ErrVotoDuplicado)
}

func TestVotoStore_RegistrarVoto_QuandoIDColideComOutraInstancia_NaoDeveAcusarDuplicado(t *testing.T) {
	store, db := novoStore(t)
	ctx := context.Background()

	// Outra instância grava o mesmo id, para outro ip, entre o MAX(id) e o INSERT.
	armado := true
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("teste:outra_instancia", func(tx *gorm.DB) {
		if !armado || tx.Statement.Table != "votos" {
			return
		}
		armado = false
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO votos (id, voto, fecha, timestamp_ms, navegador, sistema_operativo, ip, pais, ciudad) " +
				"VALUES (1, 'no', '', 0, '', '', '9.9.9.9', '', '')")
	}))

	// Act
	_, err := store.RegistrarVoto(ctx, domain.EscolhaSi, metaIP("200.1.1.1"))

	// Assert
	assert.ErrorIs(t, err, domain.ErrArmazenamentoIndisponivel)
	assert.False(t, errors.Is(err, domain.ErrVotoDuplicado), "colisao de id nao e voto repetido: %v", err)

	jaVotou, err := store.JaVotou(ctx, "200.1.1.1")
	require.NoError(t, err)
	assert.False(t, jaVotou)

	apuracao, err := store.RegistrarVoto(ctx, domain.EscolhaSi, metaIP("200.1.1.1"))
	require.NoError(t, err, "nova tentativa deveria ser aceita")
	assert.Equal(t, 1, apuracao.Total)
}

func TestVotoStore_JaVotou_DeveRefletirRegistros(t *testing.T) {
	store, _ := novoStore(t)
	ctx := context.Background()

	jaVotou, err := store.JaVotou(ctx, "172.16.0.1")
	require.NoError(t, err)
	assert.False(t, jaVotou)

	_, err = store.RegistrarVoto(ctx, domain.EscolhaNo, metaIP("172.16.0.1"))
	require.NoError(t, err)

	jaVotou, err = store.JaVotou(ctx, "172.16.0.1")
	require.NoError(t, err)
	assert.True(t, jaVotou)
}

func TestVotoStore_RegistrarVoto_QuandoConcorrente_DeveAceitarUmPorIdentidade(t *testing.T) {
	store, _ := novoStore(t)
	ctx := context.Background()

	var (
		wg         conc.WaitGroup
		mu         sync.Mutex
		sucessos   int
		duplicados int
	)
	for i := 0; i < 10; i++ {
		for _, ip := range []string{"1.1.1.1", "2.2.2.2"} {
			ip := ip
			wg.Go(func() {
				_, err := store.RegistrarVoto(ctx, domain.EscolhaSi, metaIP(ip))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					sucessos++
				} else if errors.Is(err, domain.ErrVotoDuplicado) {
					duplicados++
				}
			})
		}
	}
	wg.Wait()

	assert.Equal(t, 2, sucessos)
	assert.Equal(t, 18, duplicados)

	conjunto, err := store.Carregar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, conjunto.TotalVotos)
	assert.Equal(t, conjunto.TotalVotos, conjunto.Votos.Soma())
}

func TestVotoStore_Carregar_QuandoBancoFechado_DeveRetornarArmazenamentoIndisponivel(t *testing.T) {
	store, db := novoStore(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = store.Carregar(context.Background())
	assert.ErrorIs(t, err, domain.ErrArmazenamentoIndisponivel)

	_, err = store.RegistrarVoto(context.Background(), domain.EscolhaSi, metaIP("10.0.0.1"))
	assert.ErrorIs(t, err, domain.ErrArmazenamentoIndisponivel)
}
