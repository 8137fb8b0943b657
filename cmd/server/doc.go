// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

/*
Package main is the entry point for the crmrec server.

crmrec serves product recommendations for a CRM: precomputed SQL
suggestions (content, collaborative, upsell, cross-sell) from a DuckDB fact
table, plus trained TF-IDF and truncated-SVD models persisted in a
versioned model registry.

# Application Architecture

Components run under a Suture v4 supervision tree:

	RootSupervisor ("crmrec")
	├── DataSupervisor ("data-layer")
	│   └── Event bus (Watermill GoChannel)
	├── RecommendSupervisor ("recommend-layer")
	│   └── Retraining service (optional, RECOMMEND_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── HTTP server (chi)

# Configuration

Koanf v2 layers built-in defaults, an optional YAML file (CONFIG_PATH) and
environment variables, highest priority last. Common variables:

	HTTP_PORT                 listen port (default 8080)
	DUCKDB_PATH               database file, ":memory:" for ephemeral
	SEED_DEMO_DATA            load the demo catalogue on startup
	MODEL_PATH                model artifact directory
	RECOMMEND_ENABLED         run scheduled retraining
	AUTH_MODE                 none or jwt
	JWT_SECRET                32+ character signing secret
	LOG_LEVEL, LOG_FORMAT     zerolog settings

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains in-flight
requests within SHUTDOWN_TIMEOUT, then the bus, the model registry and the
database are closed.
*/
package main
