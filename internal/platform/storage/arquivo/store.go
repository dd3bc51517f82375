// Pacote arquivo persiste o conjunto de votos num único arquivo legível, reescrito por inteiro a cada voto aceito.
package arquivo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcelojr/votos-addon/internal/domain"
	"github.com/marcelojr/votos-addon/internal/platform/metrics"
)

// Store mantém o conjunto em memória e o grava de forma síncrona antes de publicar cada mudança.
type Store struct {
	path  string
	codec codec
	clock domain.Clock
	loc   *time.Location

	mu       sync.RWMutex
	conjunto domain.Conjunto
	ips      map[string]struct{}
}

// Open lê o arquivo existente ou prepara um conjunto vazio com o rótulo informado.
func Open(path, addon string, clock domain.Clock, loc *time.Location) (*Store, error) {
	c, err := codecPara(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:  path,
		codec: c,
		clock: clock,
		loc:   loc,
	}

	conjunto, err := s.ler(addon)
	if err != nil {
		return nil, err
	}
	s.conjunto = conjunto
	s.ips = make(map[string]struct{}, len(conjunto.Detalles))
	for _, r := range conjunto.Detalles {
		s.ips[r.IP] = struct{}{}
	}

	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Carregar(_ context.Context) (domain.Conjunto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conjunto.Copia(), nil
}

func (s *Store) JaVotou(_ context.Context, identidade string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ips[identidade]
	return ok, nil
}

func (s *Store) RegistrarVoto(_ context.Context, escolha domain.Escolha, meta domain.Metadados) (domain.Apuracao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registro := domain.NovoRegistro(len(s.conjunto.Detalles)+1, escolha, meta, s.clock.Agora(), s.loc)
	if _, ok := s.ips[registro.IP]; ok {
		return domain.Apuracao{}, domain.ErrVotoDuplicado
	}

	novo := s.conjunto.Copia()
	novo.Detalles = append(novo.Detalles, registro)
	novo.TotalVotos++
	novo.Votos.Incrementar(escolha)

	inicio := time.Now()
	if err := s.gravar(novo); err != nil {
		return domain.Apuracao{}, fmt.Errorf("%w: arquivo: gravar %s: %w", domain.ErrArmazenamentoIndisponivel, s.path, err)
	}
	metrics.ObserveStoreWrite(time.Since(inicio).Seconds())

	// Só depois de gravado o novo estado fica visível para leitores.
	s.conjunto = novo
	s.ips[registro.IP] = struct{}{}

	return novo.Apuracao(), nil
}

func (s *Store) ler(addon string) (domain.Conjunto, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return domain.NovoConjunto(addon), nil
	}
	if err != nil {
		return domain.Conjunto{}, fmt.Errorf("%w: arquivo: ler %s: %w", domain.ErrArmazenamentoIndisponivel, s.path, err)
	}

	var conjunto domain.Conjunto
	if err := s.codec.decode(data, &conjunto); err != nil {
		return domain.Conjunto{}, fmt.Errorf("%w: arquivo: conteudo invalido em %s: %w", domain.ErrArmazenamentoIndisponivel, s.path, err)
	}
	if conjunto.AddonNombre == "" {
		conjunto.AddonNombre = addon
	}
	if conjunto.Detalles == nil {
		conjunto.Detalles = []domain.RegistroVoto{}
	}
	return conjunto, nil
}

// gravar escreve num temporário do mesmo diretório e troca pelo rename, assim nenhum leitor vê arquivo pela metade.
func (s *Store) gravar(c domain.Conjunto) error {
	data, err := s.codec.encode(c)
	if err != nil {
		return fmt.Errorf("serializar: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, s.path)
}

var _ domain.VoteStore = (*Store)(nil)
