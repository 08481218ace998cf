// Copyright 2024 Makerhive
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package docstore

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Config carries the backend-selection inputs. It is normally filled from
// the environment by ConfigFromEnv, but tests construct it directly.
type Config struct {
	// Postgres, either as one URL or as discrete parameters. Presence of
	// either selects the relational backend.
	DatabaseURL string
	PQHost      string
	PQPort      int
	PQUser      string
	PQPassword  string
	PQDatabase  string

	// Mongo connection string; empty means the localhost default outside
	// hosted mode and "skip mongo" inside it.
	MongoURI      string
	MongoDatabase string

	// FileStore forces the file backend regardless of everything else.
	FileStore bool

	// HostedMode marks a hosted-production deployment: connection failures
	// degrade down the chain instead of aborting the process. Outside
	// hosted mode a failure is fatal, because a local connection failure
	// almost always means misconfiguration that should not be papered
	// over.
	HostedMode bool

	// DataDir is where the file backend keeps its collection files.
	DataDir string
}

// ConfigFromEnv reads the selection inputs from plain environment variables
// with defaults.
func ConfigFromEnv() Config {
	cfg := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		PQHost:        os.Getenv("POSTGRES_HOST"),
		PQPort:        5432,
		PQUser:        os.Getenv("POSTGRES_USER"),
		PQPassword:    os.Getenv("POSTGRES_PASSWORD"),
		PQDatabase:    os.Getenv("POSTGRES_DATABASE"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: os.Getenv("MONGO_DATABASE"),
		FileStore:     os.Getenv("FILE_STORE") == "true",
		HostedMode:    os.Getenv("HOSTED_MODE") == "true",
		DataDir:       os.Getenv("DATA_DIR"),
	}
	if portString := os.Getenv("POSTGRES_PORT"); portString != "" {
		port, err := strconv.Atoi(portString)
		if err != nil {
			zap.S().Errorf("Cannot parse POSTGRES_PORT %q: not a number", portString)
		} else {
			cfg.PQPort = port
		}
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "makerhive"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	return cfg
}

// Connect walks the fallback chain and returns the single Store for this
// process:
//
//	postgres configured -> postgres, degrading to file in hosted mode
//	file flag, or hosted mode without a mongo URI -> file
//	otherwise -> mongo, degrading to file in hosted mode
//
// Outside hosted mode any connection failure is returned to the caller,
// which is expected to treat it as fatal.
func Connect(ctx context.Context, cfg Config) (Store, error) {
	if cfg.DatabaseURL != "" || cfg.PQHost != "" {
		store, err := NewPostgresStore(ctx, cfg)
		if err == nil {
			zap.S().Infow("Using postgres backend")
			return store, nil
		}
		if !cfg.HostedMode {
			return nil, fmt.Errorf("docstore: postgres configured but unreachable: %w", err)
		}
		zap.S().Warnw("Postgres unreachable, falling back to file store", "error", err)
		return newFileFallback(cfg)
	}

	if cfg.FileStore || (cfg.HostedMode && cfg.MongoURI == "") {
		zap.S().Infow("Using file backend", "dir", cfg.DataDir)
		return NewFileStore(cfg.DataDir)
	}

	uri := cfg.MongoURI
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	store, err := NewMongoStore(ctx, uri, cfg.MongoDatabase)
	if err == nil {
		zap.S().Infow("Using mongo backend")
		return store, nil
	}
	if !cfg.HostedMode {
		return nil, fmt.Errorf("docstore: mongo unreachable: %w", err)
	}
	zap.S().Warnw("Mongo unreachable, falling back to file store", "error", err)
	return newFileFallback(cfg)
}

func newFileFallback(cfg Config) (Store, error) {
	store, err := NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: file fallback failed: %s", ErrNoBackend, err)
	}
	return store, nil
}
