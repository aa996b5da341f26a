package dto

type StatusDTO struct {
	App          AppStatusDTO     `json:"app"`
	Storage      StorageStatusDTO `json:"storage"`
	Game         GameStatusDTO    `json:"game"`
	RecentErrors []RecentErrorDTO `json:"recent_errors"`
}

type AppStatusDTO struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	SafeMode   bool   `json:"safe_mode"`
	ConfigPath string `json:"config_path,omitempty"`
	Timezone   string `json:"timezone"`
}

type StorageStatusDTO struct {
	DBPath         string `json:"db_path"`
	SchemaVersion  int    `json:"schema_version"`
	SafeModeReason string `json:"safe_mode_reason,omitempty"`
}

type GameStatusDTO struct {
	Users          int64            `json:"users"`
	Categories     map[string]int64 `json:"categories"`
	SkillTrees     []string         `json:"skill_trees"`
	NextSweepAt    int64            `json:"next_sweep_at"`
	AutoSweep      bool             `json:"auto_sweep"`
	EventListeners int              `json:"event_listeners"`
}

type RecentErrorDTO struct {
	Time    string `json:"time,omitempty"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"`
}
