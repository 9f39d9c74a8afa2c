// Package services declares the external collaborators the engine invokes as
// opaque calls. Only success or failure of a call is observed.
package services

import (
	"context"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
)

// CompositorRequest asks for the compositor outputs of one view layer.
type CompositorRequest struct {
	ViewLayer string `json:"view_layer"`
	UsePasses bool   `json:"use_passes"`
}

// Email is one notification message.
type Email struct {
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
	Recipient  string `json:"email"`
}

// Compositor sets up compositor passes for a view layer.
type Compositor interface {
	SetupPasses(ctx context.Context, req CompositorRequest) error
}

// Notifier dispatches notifications.
type Notifier interface {
	Send(ctx context.Context, msg Email) error
}

// Logging implements every service by logging the call. It is used when no
// relay is configured.
type Logging struct{}

var (
	_ Compositor = Logging{}
	_ Notifier   = Logging{}
)

// SetupPasses logs the request.
func (Logging) SetupPasses(ctx context.Context, req CompositorRequest) error {
	ctxlog.FromContext(ctx).Info("Compositor setup requested.", "view_layer", req.ViewLayer, "use_passes", req.UsePasses)
	return nil
}

// Send logs the message.
func (Logging) Send(ctx context.Context, msg Email) error {
	ctxlog.FromContext(ctx).Info("Notification requested.", "subject", msg.Subject, "to", msg.Recipient, "from", msg.SenderName)
	return nil
}
