package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/port/broadcast"
)

// EventTaskStatus is sent whenever a task changes state.
const EventTaskStatus = broadcast.EventTaskStatus

// BroadcastEvent marshals a typed event and broadcasts it. Task status
// events only reach clients watching all tasks or that task.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	var taskID string
	if ev, ok := payload.(task.StatusEvent); ok {
		taskID = ev.TaskID
	}

	h.broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	}, taskID)
}
