package calyxschema

import "bytes"

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// builtinSchemas are the canonical (additionalProperties-tolerant) schemas
// for the core on-disk entities. They intentionally only constrain the
// invariant-bearing fields (required keys, enum values) and otherwise
// allow unknown keys.
var builtinSchemas = map[string][]byte{
	"heartbeat": []byte(`{
		"type": "object",
		"required": ["id", "pid", "ts", "status"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"pid": {"type": "integer"},
			"ts": {"type": "number"},
			"status": {"enum": ["running", "done", "warn", "error", "idle", "paused"]}
		}
	}`),
	"run_record": []byte(`{
		"type": "object",
		"required": ["iso_ts", "tes", "stability", "status"],
		"properties": {
			"tes": {"type": "number", "minimum": 0, "maximum": 100},
			"stability": {"type": "number", "minimum": 0, "maximum": 1},
			"velocity": {"type": "number", "minimum": 0, "maximum": 1},
			"footprint": {"type": "number", "minimum": 0, "maximum": 1},
			"autonomy_mode": {"enum": ["safe", "tests", "apply", "apply_tests"]}
		}
	}`),
	"lease": []byte(`{
		"type": "object",
		"required": ["lease_id", "intent_id", "issued_at", "expires_at"],
		"properties": {
			"lease_id": {"type": "string", "minLength": 1},
			"intent_id": {"type": "string", "minLength": 1}
		}
	}`),
	"policy_decision": []byte(`{
		"type": "object",
		"required": ["result", "reason", "request_type"],
		"properties": {
			"result": {"enum": ["ALLOWED", "DENIED"]}
		}
	}`),
	"intent": []byte(`{
		"type": "object",
		"required": ["intent_id", "goal", "status"],
		"properties": {
			"risk_level": {"enum": ["low", "medium", "high"]},
			"status": {"enum": ["under_review", "approved_pending_human", "rejected", "superseded"]}
		}
	}`),
}
