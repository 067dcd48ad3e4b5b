package tcmalloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinLock_MutualExclusion(t *testing.T) {
	var l spinLock
	var counter int
	var wg sync.WaitGroup

	const goroutines = 16
	const increments = 1000
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*increments, counter)
}

func TestSpinLock_UnlockWithoutLockPanics(t *testing.T) {
	var l spinLock
	assert.Panics(t, func() { l.Unlock() })
}
