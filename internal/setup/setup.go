// Package setup registers the MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key under which the server is registered.
const ServerName = "bd4predict"

// BinaryName is the MCP server executable.
const BinaryName = "bd4predict-mcp-server"

// ClientConfig is the client configuration file. Unknown top-level keys
// are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options describes the registration to write.
type Options struct {
	BinaryPath string
	DataDir    string
	ModelPath  string
}

// DefaultClientConfigPath returns the Claude Desktop configuration path
// for the current platform.
func DefaultClientConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	}
	return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
}

// Load reads a client configuration. A missing file yields an empty one.
func Load(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]ServerEntry{}, extra: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// Save writes the configuration, creating its directory if needed.
func (c *ClientConfig) Save(path string) error {
	out := make(map[string]interface{}, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry in the configuration at path.
func Register(path string, opts Options) (*ServerEntry, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = FindBinary(); err != nil {
			return nil, err
		}
	}

	entry := ServerEntry{Command: binary, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env["BD4P_DATA_DIR"] = opts.DataDir
	}
	if opts.ModelPath != "" {
		entry.Env["BD4P_MODEL_PATH"] = opts.ModelPath
	}
	cfg.MCPServers[ServerName] = entry

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindBinary looks for the MCP server on PATH and in common install locations.
func FindBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	for _, loc := range []string{
		"./" + BinaryName,
		"./build/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	} {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}
	return "", fmt.Errorf("binary %q not found in common locations", BinaryName)
}

// Status summarizes the registration found at a client config path.
type Status struct {
	ConfigPath   string
	Registered   bool
	BinaryPath   string
	BinaryExists bool
	DataDir      string
}

// GetStatus inspects the configuration at path.
func GetStatus(path string) (*Status, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	status := &Status{ConfigPath: path}
	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		return status, nil
	}
	status.Registered = true
	status.BinaryPath = entry.Command
	_, err = os.Stat(entry.Command)
	status.BinaryExists = err == nil
	status.DataDir = entry.Env["BD4P_DATA_DIR"]
	return status, nil
}
