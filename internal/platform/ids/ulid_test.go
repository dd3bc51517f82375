package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewULID_DeveGerarIdsUnicosEOrdenados(t *testing.T) {
	anterior := NewULID()
	for i := 0; i < 100; i++ {
		atual := NewULID()
		assert.True(t, Valido(atual))
		assert.Greater(t, atual, anterior)
		anterior = atual
	}
}

func TestNewULID_QuandoConcorrente_NaoDeveRepetir(t *testing.T) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		vistos = make(map[string]struct{})
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewULID()
			mu.Lock()
			vistos[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, vistos, 50)
}

func TestValido(t *testing.T) {
	assert.False(t, Valido("req-123"))
	assert.False(t, Valido(""))
}
