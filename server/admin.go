package server

import (
	"encoding/json"
	"net/http"

	"arrowarena/game"
	"arrowarena/protocol"
)

// netConfig 房间可热更新的传输层参数；模拟规则在房间生命周期内固定，只读
type netConfig struct {
	SimulateDelayMinMs *int64      `json:"simulateDelayMinMs,omitempty"`
	SimulateDelayMaxMs *int64      `json:"simulateDelayMaxMs,omitempty"`
	Rules              *game.Rules `json:"rules,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// HandleAdminConfig 提供房间配置的读取与传输延迟的更新
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新模拟延迟
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	room, err := m.GetOrCreateRoom(roomID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		lo, hi := room.netsim.minMs.Load(), room.netsim.maxMs.Load()
		rules := room.rules
		writeJSON(w, netConfig{SimulateDelayMinMs: &lo, SimulateDelayMaxMs: &hi, Rules: &rules})
		return
	case http.MethodPost:
		var body netConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.Rules != nil {
			http.Error(w, "rules are fixed for the lifetime of a room", http.StatusBadRequest)
			return
		}
		lo, hi := room.netsim.minMs.Load(), room.netsim.maxMs.Load()
		if body.SimulateDelayMinMs != nil {
			lo = *body.SimulateDelayMinMs
		}
		if body.SimulateDelayMaxMs != nil {
			hi = *body.SimulateDelayMaxMs
		}
		room.netsim.set(lo, hi)
		writeJSON(w, map[string]any{"ok": true})
		Log.Infof("config updated: room=%s delay=[%d,%d]", room.ID, room.netsim.minMs.Load(), room.netsim.maxMs.Load())
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	room, ok := m.Room(r.URL.Query().Get("room"))
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	info := room.Info()
	writeJSON(w, map[string]any{
		"room":    room.ID,
		"tick":    info.Tick,
		"players": len(info.Peers),
		"metrics": room.metrics.Snapshot(),
	})
}

// HandleRooms 列出所有房间
// GET /admin/rooms
func (m *RoomManager) HandleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, m.Rooms())
}

// HandleSchema 输出线上消息的 JSON Schema
func HandleSchema(w http.ResponseWriter, r *http.Request) {
	b, err := protocol.Schema()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(b)
}
