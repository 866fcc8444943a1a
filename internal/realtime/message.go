package realtime

import (
	"shopfront_console/internal/model"
	"shopfront_console/internal/service"
)

// MessageType 跨上下文消息类型
type MessageType string

const (
	// 标签页 -> 后台
	MsgStartBackgroundSync MessageType = "START_BACKGROUND_SYNC"
	MsgTriggerNotification MessageType = "TRIGGER_NOTIFICATION"
	MsgDismissToast        MessageType = "DISMISS_TOAST"
	MsgAudioFailed         MessageType = "AUDIO_FAILED"

	// 后台 -> 标签页
	MsgNewOrderDetected MessageType = "NEW_ORDER_DETECTED"
	MsgOrdersSnapshot   MessageType = "ORDERS_SNAPSHOT"
	MsgOrdersRefreshed  MessageType = "ORDERS_REFRESHED"
	MsgSyncStatus       MessageType = "SYNC_STATUS"
	MsgToast            MessageType = "TOAST"
	MsgToastDismissed   MessageType = "TOAST_DISMISSED"
	MsgPlaySound        MessageType = "PLAY_SOUND"
	MsgShowNotification MessageType = "SHOW_NOTIFICATION"
	MsgFocus            MessageType = "FOCUS"
)

// 同步状态
const (
	SyncStateSyncing = "syncing"
	SyncStateOK      = "ok"
	SyncStateStale   = "stale"
)

// Envelope 所有跨上下文消息的统一信封
type Envelope struct {
	Type         MessageType           `json:"type"`
	Order        *model.Order          `json:"order,omitempty"`
	Orders       []model.Order         `json:"orders,omitempty"`
	Notification *service.Notification `json:"notification,omitempty"`
	Toast        *service.Toast        `json:"toast,omitempty"`
	ToastID      string                `json:"toast_id,omitempty"`
	Sound        string                `json:"sound,omitempty"`
	State        string                `json:"state,omitempty"`
	Error        string                `json:"error,omitempty"`
	URL          string                `json:"url,omitempty"`
}

// fromClient 允许标签页发来的消息类型
func (t MessageType) fromClient() bool {
	switch t {
	case MsgStartBackgroundSync, MsgTriggerNotification, MsgDismissToast, MsgAudioFailed:
		return true
	}
	return false
}
