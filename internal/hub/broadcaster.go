package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Broadcaster fans events out to a room's current members.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(r *Registry) *Broadcaster {
	return &Broadcaster{registry: r}
}

// Publish encodes event once and hands it to every member of room.
// A member that cannot take the message is skipped; the rest still get it.
// It returns how many members accepted the message.
func (b *Broadcaster) Publish(ctx context.Context, room string, event interface{}) (int, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	members := b.registry.MembersOf(room)
	delivered := 0
	for _, m := range members {
		if err := m.Deliver(data); err != nil {
			l := log.Ctx(ctx)
			l.Debug().Err(err).Str(log.FieldClientID, m.ID()).Str(log.FieldRoomID, room).Msg("skipped member during fan-out")
			continue
		}
		delivered++
	}
	return delivered, nil
}
