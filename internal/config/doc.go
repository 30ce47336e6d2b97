// Package config handles configuration loading for steward.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	oracle:
//	  api_key: "${GEMINI_API_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	loop:
//	  call_timeout: "30s"
//	dedupe:
//	  ttl: "10m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Tool backends (discovery order matters; later backends shadow earlier
// ones on operation-name collisions):
//
//	backends:
//	  - name: "email-classifier"
//	    url: "http://localhost:9001/rpc"
//	  - name: "folder-manager"
//	    url: "http://localhost:9002/rpc"
//
// Oracle:
//
//	oracle:
//	  model: "gemini-2.0-flash"
//	  api_key: "${GEMINI_API_KEY}"
//	  system_prompt: ""            # optional override
//
// Loop:
//
//	loop:
//	  max_rounds: 10
//	  call_timeout: "30s"
//	  correlation_field: "message_id"
//
// Mail collaborator (optional; without it runs are seeded from the
// message id alone):
//
//	mail:
//	  tenant_id: "${GRAPH_TENANT_ID}"
//	  client_id: "${GRAPH_CLIENT_ID}"
//	  client_secret: "${GRAPH_CLIENT_SECRET}"
//	  target_user: "inbox@example.com"
//	  allowed_sender_domain: "example.com"
//
// Transcript store (optional; empty path disables it):
//
//	store:
//	  path: "/var/lib/steward/steward.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
