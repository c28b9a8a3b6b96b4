package main

import (
	"context"
)

// funcDep adapts plain start/stop functions to the startup dependency
// interface for infrastructure without its own lifecycle type.
type funcDep struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *funcDep) GetName() string {
	return d.name
}

func (d *funcDep) DependsOn() []string {
	return d.dependsOn
}

func (d *funcDep) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *funcDep) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
