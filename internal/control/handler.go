package control

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"podstream/internal/registry"
)

// Handler applies control messages to a registry.
type Handler struct {
	registry registry.Registry
	logger   *zap.Logger
}

func NewHandler(r registry.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{
		registry: r,
		logger:   logger.Named("control"),
	}
}

// Handle applies one message. Registration is unconditional once the message
// has a type and a resource id.
func (h *Handler) Handle(msg Message) Ack {
	id := msg.ID()

	switch msg.Type {
	case SetEncryption:
		if id == "" {
			return failure(ErrMissingResourceID)
		}
		h.registry.Set(id, registry.Config{
			Key:       msg.Key,
			IV:        msg.IV,
			OriginURL: msg.ResourceURL,
			TotalSize: msg.TotalSize,
			MimeType:  msg.MimeType,
		})
		h.logger.Info("encryption registered",
			zap.String("resource", id),
			zap.Int64("totalSize", msg.TotalSize))
		return Ack{Success: true}
	case RemoveEncryption:
		if id == "" {
			return failure(ErrMissingResourceID)
		}
		h.registry.Remove(id)
		h.logger.Info("encryption removed", zap.String("resource", id))
		return Ack{Success: true}
	default:
		return failure(fmt.Errorf("%w: %q", ErrUnknownType, msg.Type))
	}
}

// Serve handles envelopes one at a time until ctx is done or in is closed.
// A nil Reply channel means the sender does not want an answer.
func (h *Handler) Serve(ctx context.Context, in <-chan Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-in:
			if !ok {
				return
			}
			ack := h.Handle(env.Message)
			if env.Reply == nil {
				continue
			}
			select {
			case env.Reply <- ack:
			case <-ctx.Done():
				return
			}
		}
	}
}

func failure(err error) Ack {
	return Ack{Success: false, Error: err.Error()}
}
