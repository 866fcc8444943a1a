package service

import (
	"errors"
	"fmt"
)

// ==================== 通知权限状态机 ====================

// Permission 系统通知权限
type Permission string

const (
	PermissionUnset       Permission = "unset"       // 未询问
	PermissionGranted     Permission = "granted"     // 已授权
	PermissionDenied      Permission = "denied"      // 已拒绝
	PermissionUnsupported Permission = "unsupported" // 设备不支持
)

var (
	ErrInvalidPermissionTransition = errors.New("通知权限不允许此变更")
	ErrNotificationsUnsupported    = errors.New("当前设备不支持系统通知")
)

// 运营人员显式操作可触发的变更；unsupported 只由能力检测设置
var permissionTransitions = map[Permission][]Permission{
	PermissionUnset:   {PermissionGranted, PermissionDenied},
	PermissionDenied:  {PermissionGranted},
	PermissionGranted: {PermissionDenied},
}

func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionUnset, PermissionGranted, PermissionDenied, PermissionUnsupported:
		return p, nil
	}
	return "", fmt.Errorf("未知的通知权限 %q", s)
}

// Resolve 运营人员给出授权结果后的下一状态
// 结果与当前相同视为无变化
func (p Permission) Resolve(result Permission) (Permission, error) {
	if p == PermissionUnsupported {
		return p, ErrNotificationsUnsupported
	}
	if result == p {
		return p, nil
	}
	for _, allowed := range permissionTransitions[p] {
		if allowed == result {
			return result, nil
		}
	}
	return p, fmt.Errorf("%w: %s -> %s", ErrInvalidPermissionTransition, p, result)
}

// AllowsSystemNotification 只有 granted 才发系统通知
func (p Permission) AllowsSystemNotification() bool {
	return p == PermissionGranted
}
