package state

import (
	"fmt"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

// MaxIntervalExp keeps 2^exp interval units well inside time.Duration.
const MaxIntervalExp = 32

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func TimerConfigValidator(cfg TimerCfg) error {
	cfg = cfg.WithDefaults()
	if int(cfg.Trickle.MinIntervalExp)+int(cfg.Trickle.Doublings) > MaxIntervalExp {
		return fmt.Errorf("trickle interval 2^(%d+%d) exceeds 2^%d", cfg.Trickle.MinIntervalExp, cfg.Trickle.Doublings, MaxIntervalExp)
	}
	if cfg.Predictor.ProbeMin < 0 || cfg.Predictor.ProbeMin >= cfg.Predictor.ProbeMax {
		return fmt.Errorf("probe retry range [%s, %s) is empty", cfg.Predictor.ProbeMin, cfg.Predictor.ProbeMax)
	}
	if cfg.Predictor.Skew < 0 {
		return fmt.Errorf("arrival skew must not be negative")
	}
	if cfg.RepairLatency < 0 || cfg.RouteLifetime < 0 {
		return fmt.Errorf("repair latency and route lifetime must not be negative")
	}
	return nil
}

func NodeConfigValidator(node *NodeCfg) error {
	err := NameValidator(string(node.Id))
	if err != nil {
		return err
	}
	if node.Prefix.IsValid() && node.Prefix != node.Prefix.Masked() {
		return fmt.Errorf("node %s: prefix %s has host bits set", node.Id, node.Prefix)
	}
	if node.BootDelay < 0 {
		return fmt.Errorf("node %s: boot delay must not be negative", node.Id)
	}
	if node.Timers != nil {
		if err := TimerConfigValidator(*node.Timers); err != nil {
			return fmt.Errorf("node %s: %w", node.Id, err)
		}
	}
	return nil
}

func MeshConfigValidator(cfg *MeshCfg) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("mesh has no nodes")
	}
	ids := make([]NodeId, 0, len(cfg.Nodes))
	hasRoot := false
	for i := range cfg.Nodes {
		node := &cfg.Nodes[i]
		if err := NodeConfigValidator(node); err != nil {
			return err
		}
		if slices.Contains(ids, node.Id) {
			return fmt.Errorf("duplicate node id: %s", node.Id)
		}
		ids = append(ids, node.Id)
		hasRoot = hasRoot || node.Root
	}
	if !hasRoot {
		return fmt.Errorf("mesh has no root node")
	}
	for i, a := range cfg.Nodes {
		for _, b := range cfg.Nodes[i+1:] {
			if a.Prefix.IsValid() && b.Prefix.IsValid() && a.Prefix.Overlaps(b.Prefix) {
				return fmt.Errorf("prefix %s of %s overlaps %s of %s", a.Prefix, a.Id, b.Prefix, b.Id)
			}
		}
	}
	if _, err := cfg.Links(); err != nil {
		return err
	}
	if cfg.Link.Loss < 0 || cfg.Link.Loss >= 1 {
		return fmt.Errorf("link loss %v must be in [0, 1)", cfg.Link.Loss)
	}
	if cfg.Link.Latency < 0 || cfg.Link.Jitter < 0 {
		return fmt.Errorf("link latency and jitter must not be negative")
	}
	return TimerConfigValidator(cfg.Timers)
}
