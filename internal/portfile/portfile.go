package portfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DoyleJ11/radio-bridge/pkg/types"
)

// Write replaces the port descriptor at path. The file is written next to
// the target and renamed so a reader never sees a partial record.
func Write(path string, d types.PortDescriptor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create port file dir: %w", err)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".port-*.json")
	if err != nil {
		return fmt.Errorf("create temp port file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write port file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close port file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace port file: %w", err)
	}
	return nil
}

func Read(path string) (types.PortDescriptor, error) {
	var d types.PortDescriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse port file: %w", err)
	}
	return d, nil
}

func Describe(host string, port int) types.PortDescriptor {
	return types.PortDescriptor{Port: port, URL: fmt.Sprintf("http://%s:%d", host, port)}
}
