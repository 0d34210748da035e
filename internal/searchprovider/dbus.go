package searchprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// Interface is the D-Bus interface the desktop shell calls.
const Interface = "org.gnome.Shell.SearchProvider2"

// Exporter publishes objects on a bus connection. *dbus.Conn satisfies it.
type Exporter interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
}

// ObjectPath returns the object path of a variant below base. Characters
// not allowed in a path element become '_'.
func ObjectPath(base, variantID string) dbus.ObjectPath {
	var b strings.Builder
	for _, r := range variantID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return dbus.ObjectPath(strings.TrimRight(base, "/") + "/" + b.String())
}

// provider adapts a Service to the method set godbus exports. Every method
// succeeds; failures are logged by the Service.
type provider struct {
	svc *Service
}

func (p provider) GetInitialResultSet(terms []string) ([]string, *dbus.Error) {
	return nonNil(p.svc.InitialResultSet(context.Background(), terms)), nil
}

func (p provider) GetSubsearchResultSet(previous, terms []string) ([]string, *dbus.Error) {
	return nonNil(p.svc.SubsearchResultSet(context.Background(), previous, terms)), nil
}

func (p provider) GetResultMetas(ids []string) ([]map[string]dbus.Variant, *dbus.Error) {
	metas := p.svc.ResultMetas(context.Background(), ids)
	out := make([]map[string]dbus.Variant, 0, len(metas))
	for _, m := range metas {
		out = append(out, metaToDBus(m))
	}
	return out, nil
}

func (p provider) ActivateResult(id string, terms []string, timestamp uint32) *dbus.Error {
	_ = p.svc.ActivateResult(context.Background(), id, terms, timestamp)
	return nil
}

func (p provider) LaunchSearch(terms []string, timestamp uint32) *dbus.Error {
	_ = p.svc.LaunchSearch(context.Background(), terms, timestamp)
	return nil
}

func metaToDBus(m ResultMeta) map[string]dbus.Variant {
	meta := map[string]dbus.Variant{
		"id":          dbus.MakeVariant(m.ID),
		"name":        dbus.MakeVariant(m.Name),
		"description": dbus.MakeVariant(m.Description),
	}
	if m.Icon != "" {
		// A string the shell feeds to g_icon_new_for_string.
		meta["gicon"] = dbus.MakeVariant(m.Icon)
	}
	return meta
}

// nonNil keeps empty results marshalable as an empty array.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Export publishes svc at path with introspection data.
func Export(conn Exporter, path dbus.ObjectPath, svc *Service) error {
	p := provider{svc: svc}
	if err := conn.Export(p, path, Interface); err != nil {
		return fmt.Errorf("failed to export %s at %s: %w", Interface, path, err)
	}

	node := &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: Interface, Methods: introspect.Methods(p)},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection at %s: %w", path, err)
	}
	return nil
}
