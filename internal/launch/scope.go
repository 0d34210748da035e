package launch

import (
	"context"
	"fmt"
	"strings"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/unit"
	godbus "github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// ScopeManager moves a running process into a new transient scope unit.
type ScopeManager interface {
	StartTransientScope(ctx context.Context, name string, pid int, description string) error
}

// ScopeName returns a unique scope unit name for an application, in the form
// the desktop uses for apps it launches itself: <prefix>-<app id>-<random>.scope.
func ScopeName(prefix, appID string) string {
	escaped := unit.UnitNameEscape(strings.ReplaceAll(appID, "-", "_"))
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s-%s.scope", prefix, escaped, random)
}

// SystemdScopes creates scopes through the systemd user manager.
type SystemdScopes struct{}

// StartTransientScope asks systemd to start a scope containing pid and waits
// for the start job to finish.
func (SystemdScopes) StartTransientScope(ctx context.Context, name string, pid int, description string) error {
	conn, err := sddbus.NewUserConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd user manager: %w", err)
	}
	defer conn.Close()

	props := []sddbus.Property{
		sddbus.PropPids(uint32(pid)),
		sddbus.PropDescription(description),
		{Name: "CollectMode", Value: godbus.MakeVariant("inactive-or-failed")},
	}

	done := make(chan string, 1)
	if _, err := conn.StartTransientUnitContext(ctx, name, "fail", props, done); err != nil {
		return fmt.Errorf("failed to start scope %s: %w", name, err)
	}

	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("scope %s start job finished with %q", name, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scope %s: %w", name, ctx.Err())
	}
}
