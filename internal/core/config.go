package core

// EngineConfig holds the per-context settings a backend applies when it
// creates its engine.
type EngineConfig struct {
	MemoryLimitMB int // per-context heap limit, 0 means engine default
}
