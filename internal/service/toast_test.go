package service

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiredLog struct {
	mu  sync.Mutex
	ids []string
}

func (l *expiredLog) record(t Toast) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, t.ID)
}

func (l *expiredLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

func TestToastBoard_Expires(t *testing.T) {
	mock := clock.NewMock()
	expired := &expiredLog{}
	board := NewToastBoard(mock, 10*time.Second, expired.record)

	toast := board.Push(Toast{Message: "New order SF-1 from Amina", Severity: SeveritySuccess})
	require.NotEmpty(t, toast.ID)
	assert.Equal(t, mock.Now(), toast.CreatedAt)
	assert.Len(t, board.Active(), 1)

	mock.Add(9 * time.Second)
	assert.Len(t, board.Active(), 1)

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return len(board.Active()) == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(expired.list()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, toast.ID, expired.list()[0])
}

func TestToastBoard_PersistentStays(t *testing.T) {
	mock := clock.NewMock()
	board := NewToastBoard(mock, time.Second, nil)

	board.Push(Toast{Message: InstallGuidance, Persistent: true})
	mock.Add(time.Hour)

	active := board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, SeverityInfo, active[0].Severity)
}

func TestToastBoard_DismissStopsTimer(t *testing.T) {
	mock := clock.NewMock()
	expired := &expiredLog{}
	board := NewToastBoard(mock, 10*time.Second, expired.record)

	a := board.Push(Toast{Message: "a"})
	b := board.Push(Toast{Message: "b"})

	assert.True(t, board.Dismiss(a.ID))
	assert.False(t, board.Dismiss(a.ID))

	active := board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	mock.Add(10 * time.Second)
	require.Eventually(t, func() bool { return len(expired.list()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(expired.list()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, b.ID, expired.list()[0], "已关闭的提示不应再过期回调")
}

func TestToastBoard_Close(t *testing.T) {
	mock := clock.NewMock()
	board := NewToastBoard(mock, time.Second, nil)

	board.Push(Toast{Message: "a"})
	board.Close()
	board.Push(Toast{Message: "b"})

	assert.Empty(t, board.Active())
}
