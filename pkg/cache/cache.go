package cache

import (
	"context"
	"time"
)

// Cache 字符串键值缓存的统一接口，支持按键设置TTL
// 生产环境使用Redis实现，测试环境使用内存实现
type Cache interface {
	// Get 获取缓存值，第二个返回值表示键是否存在
	Get(ctx context.Context, key string) (string, bool, error)

	// Set 写入缓存值并设置有效期
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete 删除缓存键（键不存在不算错误）
	Delete(ctx context.Context, key string) error

	// Close 释放底层资源
	Close() error
}
