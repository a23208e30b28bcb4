package store

// 此包只包含实现，接口定义在 core 包：
//   - core.Store：MemoryStore、RedisStore、BreakerStore
//   - core.EntityStore：MemoryEntityStore、SQLEntityStore
//
// 示例：
//   var cache core.Store = NewMemoryStore()
//   var entities core.EntityStore = NewMemoryEntityStore()
