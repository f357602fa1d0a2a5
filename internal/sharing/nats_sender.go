package sharing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/memforge/memengine/internal/logging"
	"github.com/memforge/memengine/internal/model"
)

// NATSSender publishes a share to a per-agent NATS subject, grounded on
// the teacher's operation-registry publish pattern: JSON-encode the
// payload, publish to a subject scoped by the recipient, surface any
// publish error back to the caller.
type NATSSender struct {
	conn   *nats.Conn
	logger *logging.Logger
}

// NewNATSSender wraps an already-connected *nats.Conn as a Sender.
func NewNATSSender(conn *nats.Conn, logger *logging.Logger) *NATSSender {
	return &NATSSender{conn: conn, logger: logger}
}

// natsSharePayload is the wire shape published for each delivery.
type natsSharePayload struct {
	ShareID    string `json:"share_id"`
	OwnerID    string `json:"owner_id"`
	MemoryID   string `json:"memory_id"`
	Content    string `json:"content"`
	SyncStatus string `json:"sync_status"`
}

// Send implements Sender by publishing to "sharing.{target_agent_id}.received".
func (s *NATSSender) Send(ctx context.Context, targetAgentID string, share *model.SharedMemory) error {
	payload := natsSharePayload{
		ShareID:    share.ShareID,
		OwnerID:    share.OwnerID,
		MemoryID:   share.ID,
		Content:    share.Content,
		SyncStatus: string(share.SyncStatus),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal share payload: %w", err)
	}

	subject := fmt.Sprintf("sharing.%s.received", targetAgentID)
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish share to %s: %w", subject, err)
	}

	return nil
}
