package database

import (
	"sync"

	"xamu/pkg/cache"
	"xamu/pkg/config"
)

var (
	cacheInstance cache.Cache
	cacheOnce     sync.Once
)

// GetCache 获取Redis缓存的单例实例
// 租户注册表的正负缓存都走这里
func GetCache() cache.Cache {
	cacheOnce.Do(func() {
		if cacheInstance != nil {
			return
		}
		cfg := config.GetConfig()
		cacheInstance = cache.NewRedisCache(&cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	})
	return cacheInstance
}

// SetCache 替换缓存实现，测试时注入内存缓存
func SetCache(c cache.Cache) {
	cacheOnce.Do(func() {})
	cacheInstance = c
}

// CloseCache 关闭缓存连接
func CloseCache() error {
	if cacheInstance != nil {
		return cacheInstance.Close()
	}
	return nil
}
