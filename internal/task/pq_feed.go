package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lib/pq"
)

var errSubscribeTimeout = errors.New("订阅确认超时")

// PQFeedSource 基于 PostgreSQL LISTEN/NOTIFY 的变更订阅
// 断线不依赖 pq.Listener 自带的重连：报告 closed 后由订阅任务统一按固定间隔重建
type PQFeedSource struct {
	dsn     string
	timeout time.Duration
	clock   clock.Clock
}

func NewPQFeedSource(dsn string, subscribeTimeout time.Duration, clk clock.Clock) *PQFeedSource {
	if subscribeTimeout <= 0 {
		subscribeTimeout = 15 * time.Second
	}
	return &PQFeedSource{dsn: dsn, timeout: subscribeTimeout, clock: clk}
}

type pqSubscription struct {
	listener *pq.Listener
	done     chan struct{}
	once     sync.Once
}

func (s *pqSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.listener.Close()
	})
	return err
}

func (p *PQFeedSource) Subscribe(ctx context.Context, channel string, onStatus func(FeedStatus, error), onInsert func([]byte)) (FeedSubscription, error) {
	sub := &pqSubscription{done: make(chan struct{})}

	sub.listener = pq.NewListener(p.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		select {
		case <-sub.done:
			return
		default:
		}
		switch ev {
		case pq.ListenerEventDisconnected:
			onStatus(FeedClosed, err)
		case pq.ListenerEventConnectionAttemptFailed:
			onStatus(FeedChannelError, err)
		}
	})

	go p.listen(ctx, sub, channel, onStatus, onInsert)
	return sub, nil
}

func (p *PQFeedSource) listen(ctx context.Context, sub *pqSubscription, channel string, onStatus func(FeedStatus, error), onInsert func([]byte)) {
	acked := make(chan error, 1)
	go func() { acked <- sub.listener.Listen(channel) }()

	timer := p.clock.Timer(p.timeout)
	defer timer.Stop()

	select {
	case err := <-acked:
		if err != nil {
			onStatus(FeedChannelError, err)
			return
		}
		onStatus(FeedSubscribed, nil)
	case <-timer.C:
		onStatus(FeedTimedOut, errSubscribeTimeout)
		return
	case <-sub.done:
		return
	case <-ctx.Done():
		return
	}

	for {
		select {
		case n := <-sub.listener.Notify:
			// pq 在重连后会发一个 nil
			if n == nil {
				continue
			}
			onInsert([]byte(n.Extra))
		case <-sub.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
