package dumper

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/nao1215/sysdump/internal/log"
	"github.com/nao1215/sysdump/internal/model"
)

// UnitClient is the part of the systemd D-Bus API the ability Producer uses.
// *dbus.Conn implements it.
type UnitClient interface {
	ListUnitsContext(ctx context.Context) ([]dbus.UnitStatus, error)
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]any, error)
	Close()
}

// UnitDialer opens a UnitClient.
type UnitDialer func(ctx context.Context) (UnitClient, error)

// DialSystemd connects to the system instance of systemd.
func DialSystemd(ctx context.Context) (UnitClient, error) {
	conn, err := dbus.NewSystemdConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// abilityDumper lists the system's units, or the properties of one unit
// when the StageConfig has a target. The section is never titled.
type abilityDumper struct {
	base
	dial   UnitDialer
	unit   string
	client UnitClient
}

func newAbilityDumper(dial UnitDialer) *abilityDumper {
	if dial == nil {
		dial = DialSystemd
	}
	return &abilityDumper{base: base{name: NameAbility}, dial: dial}
}

// Configure implements pipeline.Configurable.
func (d *abilityDumper) Configure(cfg model.StageConfig) error {
	d.unit = unitName(cfg.Target)
	return nil
}

// PreExecute implements pipeline.Stage. It fails when systemd cannot be
// reached.
func (d *abilityDumper) PreExecute(ctx context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	if d.client != nil {
		return model.StatusOk
	}
	client, err := d.dial(ctx)
	if err != nil {
		return d.fail("failed to connect to systemd", err)
	}
	d.client = client
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *abilityDumper) Execute(ctx context.Context) model.Status {
	if d.unit != "" {
		return d.properties(ctx)
	}

	units, err := d.client.ListUnitsContext(ctx)
	if err != nil {
		return d.fail("failed to list units", err)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })

	d.buf.Append("UNIT", "LOAD", "ACTIVE", "SUB", "DESCRIPTION")
	for _, u := range units {
		d.buf.Append(u.Name, u.LoadState, u.ActiveState, u.SubState, u.Description)
	}
	return model.StatusOk
}

func (d *abilityDumper) properties(ctx context.Context) model.Status {
	props, err := d.client.GetUnitPropertiesContext(ctx, d.unit)
	if err != nil {
		return d.fail("failed to get unit properties", err)
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d.buf.Append("UNIT", d.unit)
	for _, k := range keys {
		d.buf.Append(k, log.MaskIfSensitive(k, fmt.Sprint(props[k])))
	}
	return model.StatusOk
}

// Reset implements pipeline.Stage.
func (d *abilityDumper) Reset() {
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	d.base.Reset()
}

// unitName adds the ".service" suffix to bare unit names.
func unitName(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || strings.Contains(target, ".") {
		return target
	}
	return target + ".service"
}
