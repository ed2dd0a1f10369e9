package storage

import (
	"gopkg.in/yaml.v3"
)

func readYAML(path string, out any) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return newStorageError("unmarshal_yaml", path, err)
	}
	return nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return newStorageError("marshal_yaml", path, err)
	}
	return writeAtomic(path, data, 0o644)
}
