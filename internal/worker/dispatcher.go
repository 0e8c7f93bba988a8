package worker

import (
	"context"
	"fmt"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

// Settler is the subset of the callback client the dispatcher needs.
type Settler interface {
	Resolve(ctx context.Context, correlationID string, data interface{}) error
	Reject(ctx context.Context, correlationID, message string) error
}

// Dispatcher routes typed worker commands from the request service to
// the live platform connection.
type Dispatcher struct {
	Live     LiveClient
	Callback Settler
	// OnReload is invoked for reload commands, typically to drop cached
	// session state and reconnect.
	OnReload func()
	Log      *logger.Logger
}

// Handle executes one worker command. Unknown types are logged and
// dropped, never fatal.
func (d *Dispatcher) Handle(ctx context.Context, cmd models.WorkerCommand) {
	switch cmd.Type {
	case models.WorkerCmdReload:
		d.Log.Info("WORKER", "Reload command received")
		if d.OnReload != nil {
			d.OnReload()
		}

	case models.WorkerCmdInsertPaid:
		d.handleInsertPaid(ctx, cmd)

	case models.WorkerCmdUserList:
		d.handleUserList(ctx, cmd)

	default:
		d.Log.Warn("WORKER", fmt.Sprintf("Unknown command type: %q", cmd.Type))
	}
}

func (d *Dispatcher) handleInsertPaid(ctx context.Context, cmd models.WorkerCommand) {
	if cmd.User == nil {
		d.Log.Warn("WORKER", "Insert-paid command without a user")
		return
	}

	d.Log.Info("WORKER", fmt.Sprintf("Paid request granted to %s (%s)", cmd.User.Nickname, cmd.User.ID))
	if !cmd.SendMessage {
		return
	}

	text := fmt.Sprintf("@%s you have been granted a paid song request. Type \"!sr <title - artist>\"", cmd.User.Nickname)
	if err := d.Live.SendMessage(ctx, text); err != nil {
		d.Log.Error("WORKER", fmt.Sprintf("Failed to announce paid grant: %v", err))
	}
}

func (d *Dispatcher) handleUserList(ctx context.Context, cmd models.WorkerCommand) {
	if cmd.CorrelationID == "" {
		d.Log.Warn("WORKER", "User-list command without a correlation id")
		return
	}

	users, err := d.Live.Users(ctx)
	if err != nil {
		d.Log.Error("WORKER", fmt.Sprintf("Failed to fetch live users: %v", err))
		if cerr := d.Callback.Reject(ctx, cmd.CorrelationID, err.Error()); cerr != nil {
			d.Log.LogBridge("reject", cmd.CorrelationID, fmt.Sprintf("Callback failed: %v", cerr))
		}
		return
	}

	result := models.UserListResult{Success: true, Users: users}
	if err := d.Callback.Resolve(ctx, cmd.CorrelationID, result); err != nil {
		d.Log.LogBridge("resolve", cmd.CorrelationID, fmt.Sprintf("Callback failed: %v", err))
		return
	}
	d.Log.LogBridge("resolve", cmd.CorrelationID, fmt.Sprintf("Delivered %d users", len(users)))
}
