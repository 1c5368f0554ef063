package effector

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/roach88/rtn/internal/ir"
)

// Player is the host Effector. It plays stimulus assets by running an
// external audio command (e.g. "aplay -q") with the asset path appended.
// With no command configured it only logs, which is how the interactive
// host runs on machines without audio.
//
// The indicator has no hardware on a host machine; Indicate is logged.
type Player struct {
	command []string
	assets  map[ir.Tier]string
}

// NewPlayer creates a Player. assets maps each presentable tier to a file.
func NewPlayer(command []string, assets map[ir.Tier]string) *Player {
	cp := make(map[ir.Tier]string, len(assets))
	for k, v := range assets {
		cp[k] = v
	}
	return &Player{command: command, assets: cp}
}

// PresentStimulus plays the tier's asset and waits for playback to finish.
func (p *Player) PresentStimulus(ctx context.Context, tier ir.Tier) error {
	asset, ok := p.assets[tier]
	if !ok {
		return fmt.Errorf("no asset for tier %s", tier)
	}

	if len(p.command) == 0 {
		slog.Info("stimulus presented", "tier", tier.String(), "asset", asset, "player", "none")
		return nil
	}

	args := append(append([]string{}, p.command[1:]...), asset)
	cmd := exec.CommandContext(ctx, p.command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("play %s: %w (output: %s)", asset, err, out)
	}

	slog.Info("stimulus presented", "tier", tier.String(), "asset", asset)
	return nil
}

// Indicate logs the indicator change.
func (p *Player) Indicate(_ context.Context, color Color, d time.Duration) error {
	slog.Info("indicator", "color", color.String(), "fade", d)
	return nil
}
