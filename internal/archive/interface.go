package archive

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
)

// Archiver ships accepted messages to long-term storage. It is best-effort:
// a failed Archive never affects delivery or history.
type Archiver interface {
	Archive(ctx context.Context, msg domain.ChatMessage) error
	Close() error
}

// New builds the archiver selected by cfg.Driver.
func New(cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "kafka":
		p, err := NewConfluentProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s", cfg.Driver)
	}
}

// Noop discards everything.
type Noop struct{}

func (Noop) Archive(context.Context, domain.ChatMessage) error { return nil }

func (Noop) Close() error { return nil }
