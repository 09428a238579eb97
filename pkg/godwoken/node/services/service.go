package services

import "context"

// Name identifies a node-scoped service.
type Name string

// Service is a long-running component attached to an upstream node.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() Name
	Ready(ctx context.Context) error
	OnReady(ctx context.Context, cb func(context.Context) error)
}
