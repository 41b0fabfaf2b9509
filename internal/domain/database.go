package domain

import "context"

// Database is a logical dump/restore capability for the service's backing
// database engine.
type Database interface {
	Dump(ctx context.Context, outputPath string) error
	Restore(ctx context.Context, dumpPath string) error
	GetName() string
	GetType() string
	Ping(ctx context.Context) error
}
