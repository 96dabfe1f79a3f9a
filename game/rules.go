package game

import "time"

// Rules 模拟使用的固定参数（服务端下发，客户端照搬，运行期不可协商）
type Rules struct {
	SyncRate           int     `json:"syncRate"`           // 帧同步频率（次/秒）
	MoveSpeed          float64 `json:"moveSpeed"`          // 移动速度（单位/秒）
	AttackRadius       float64 `json:"attackRadius"`       // 箭矢落地命中半径
	IncapacitationMs   float64 `json:"incapacitationMs"`   // 被命中后的晕眩时长（毫秒）
	ProjectileFlightMs float64 `json:"projectileFlightMs"` // 箭矢飞行时间（毫秒）
	ProjectileRange    float64 `json:"projectileRange"`    // 箭矢投掷距离
}

// DefaultRules 默认参数
func DefaultRules() Rules {
	return Rules{
		SyncRate:           10,
		MoveSpeed:          10,
		AttackRadius:       2,
		IncapacitationMs:   1000,
		ProjectileFlightMs: 500,
		ProjectileRange:    8,
	}
}

// TickInterval 每次同步的间隔（1000/syncRate 毫秒）
func (r Rules) TickInterval() time.Duration {
	rate := r.SyncRate
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(1000/rate) * time.Millisecond
}
