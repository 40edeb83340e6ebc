package entity

// Author identifies who publishes the application.
type Author struct {
	Name   string `json:"name" yaml:"name"`
	Email  string `json:"email" yaml:"email"`
	Github string `json:"github" yaml:"github"`
}

// AppInfo is the application identity shown by the health endpoint.
type AppInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`
	Author      Author `json:"author" yaml:"author"`
}

// ServerOverride and DatabaseOverride hold optional overrides from the
// application config file. Zero values mean "keep the env setting".
type ServerOverride struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

type DatabaseOverride struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// AppConfig mirrors app_config.json (or the YAML equivalent).
type AppConfig struct {
	App      *AppInfo          `json:"app,omitempty" yaml:"app,omitempty"`
	Mode     string            `json:"mode,omitempty" yaml:"mode,omitempty"`
	Server   *ServerOverride   `json:"server,omitempty" yaml:"server,omitempty"`
	Database *DatabaseOverride `json:"database,omitempty" yaml:"database,omitempty"`
}

// DefaultAppInfo is used when no config file provides one.
func DefaultAppInfo() AppInfo {
	return AppInfo{
		Name:        "Fusion",
		Description: "A production-ready full-stack application template",
		Version:     "1.0.0",
	}
}
