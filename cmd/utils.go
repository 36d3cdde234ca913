package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/state"
)

func loadMesh() (*state.MeshCfg, error) {
	cfg, err := core.ReadMeshConfig(meshConfigPath)
	if err != nil {
		return nil, err
	}
	err = state.MeshConfigValidator(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// linkEvent changes a link at a point in virtual time.
type linkEvent struct {
	a, b state.NodeId
	at   time.Duration
}

// parseLinkEvent parses "a-b@30s".
func parseLinkEvent(s string) (linkEvent, error) {
	link, at, ok := strings.Cut(s, "@")
	if !ok {
		return linkEvent{}, fmt.Errorf("invalid link event %q, expected a-b@duration", s)
	}
	a, b, ok := strings.Cut(link, "-")
	if !ok || a == "" || b == "" {
		return linkEvent{}, fmt.Errorf("invalid link %q, expected a-b", link)
	}
	d, err := time.ParseDuration(at)
	if err != nil {
		return linkEvent{}, err
	}
	if d < 0 {
		return linkEvent{}, fmt.Errorf("link event %q is in the past", s)
	}
	return linkEvent{a: state.NodeId(strings.TrimSpace(a)), b: state.NodeId(strings.TrimSpace(b)), at: d}, nil
}
