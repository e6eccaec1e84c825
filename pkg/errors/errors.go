package errors

import "errors"

// ErrReseedInProgress 另一次采集正持有同一范围的锁
var ErrReseedInProgress = errors.New("同一范围的采集正在进行，请稍后重试")

// ErrLockNotHeld 释放锁时锁已过期或被其他运行持有
var ErrLockNotHeld = errors.New("锁已过期或不属于当前运行")
