package runloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := New("test")
	defer l.Close()

	var got []int
	for i := 0; i < 100; i++ {
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.True(t, l.Sync(func() {}))

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestLoop_TasksDoNotOverlap(t *testing.T) {
	l := New("test")
	defer l.Close()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	require.True(t, l.Sync(func() {}))

	assert.Equal(t, 1, maxActive)
}

func TestLoop_PostAfterClose(t *testing.T) {
	l := New("test")
	l.Close()

	assert.False(t, l.Post(func() {}))
	assert.False(t, l.Sync(func() {}))

	select {
	case <-l.Closed():
	case <-time.After(time.Second):
		t.Fatal("loop goroutine did not exit")
	}
}

func TestLoop_IsClosed(t *testing.T) {
	l := New("test")
	assert.False(t, l.IsClosed())

	block := make(chan struct{})
	require.True(t, l.Post(func() { <-block }))
	l.Close()
	assert.True(t, l.IsClosed())
	close(block)
	<-l.Closed()
}

func TestLoop_CloseDropsPendingTasks(t *testing.T) {
	l := New("test")

	release := make(chan struct{})
	started := make(chan struct{})
	l.Post(func() {
		close(started)
		<-release
	})
	<-started

	var ranLate bool
	l.Post(func() { ranLate = true })
	l.Close()
	close(release)

	<-l.Closed()
	assert.False(t, ranLate)
}

func TestLoop_RecoversFromPanics(t *testing.T) {
	l := New("test")
	defer l.Close()

	l.Post(func() { panic("task failed") })

	ran := false
	require.True(t, l.Sync(func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_NilTask(t *testing.T) {
	l := New("test")
	defer l.Close()

	assert.False(t, l.Post(nil))
}

func TestMain_IsShared(t *testing.T) {
	assert.Same(t, Main(), Main())
	assert.Equal(t, "main", Main().Name())
}
