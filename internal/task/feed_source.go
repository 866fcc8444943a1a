package task

import "context"

// FeedStatus 订阅状态
type FeedStatus string

const (
	FeedIdle         FeedStatus = "idle"
	FeedJoining      FeedStatus = "joining"
	FeedSubscribed   FeedStatus = "subscribed"
	FeedClosed       FeedStatus = "closed"
	FeedChannelError FeedStatus = "channel_error"
	FeedTimedOut     FeedStatus = "timed_out"
)

// FeedSubscription 一次订阅，Close 后不再回调
type FeedSubscription interface {
	Close() error
}

// FeedSource 订单插入的变更订阅来源
type FeedSource interface {
	// Subscribe 建立一次订阅。onStatus 报告状态变化，onInsert 携带插入行的 JSON；
	// 两个回调可能在任意 goroutine 上被调用，也可能在 Subscribe 返回前被调用
	Subscribe(ctx context.Context, channel string, onStatus func(FeedStatus, error), onInsert func([]byte)) (FeedSubscription, error)
}
