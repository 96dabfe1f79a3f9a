package game

// EventType 瞬时事件类型
type EventType string

const (
	// EventProjectileSpawned 箭矢发射（表现层用于播放投掷动作）
	EventProjectileSpawned EventType = "projectile_spawned"
	// EventProjectileLanded 箭矢落地，Hits 为被击晕的玩家
	EventProjectileLanded EventType = "projectile_landed"
)

// Event 转瞬即逝、不体现在前后两帧状态差异中的信息。
// 不属于确定性契约：和解重放时可能重复触发。
type Event struct {
	Type       EventType  `json:"type"`
	Projectile Projectile `json:"projectile"`
	Hits       []int      `json:"hits,omitempty"`
	// Cause 触发事件的输入
	Cause Input `json:"cause"`
}
